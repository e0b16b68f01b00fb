package checkout

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(n int) *int { return &n }

func testLine(productID int64, priceCents int64, qty int) CartLine {
	return CartLine{
		ProductID:      productID,
		VariantID:      productID * 10,
		Name:           "Producto de prueba",
		UnitPriceCents: priceCents,
		Quantity:       qty,
	}
}

func fillShippingAddress(c *Controller) {
	c.SetShippingAddress(ShippingAddress{
		Name:    "Laura Gómez",
		Phone:   "3001234567",
		Address: "Calle 45 #12-34",
		City:    "Bogotá",
	})
}

func TestAddItem_NewLineGetsID(t *testing.T) {
	c := NewController("s1", nil)

	line, err := c.AddItem(testLine(1, 10_000, 2))
	require.NoError(t, err)
	assert.NotEmpty(t, line.ID)
	assert.Len(t, c.Items(), 1)
	assert.Equal(t, 2, c.TotalItemCount())
}

func TestAddItem_RejectsNonPositiveQuantity(t *testing.T) {
	c := NewController("s1", nil)

	_, err := c.AddItem(testLine(1, 10_000, 0))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	assert.Empty(t, c.Items())
}

func TestAddItem_MergesSameVariant(t *testing.T) {
	c := NewController("s1", nil)

	first := testLine(1, 10_000, 2)
	first.VariantAttrs = map[string]string{"talla": "M", "color": "azul"}
	added, err := c.AddItem(first)
	require.NoError(t, err)

	second := testLine(1, 10_000, 3)
	second.VariantAttrs = map[string]string{"color": "azul", "talla": "M"}
	merged, err := c.AddItem(second)
	require.NoError(t, err)

	assert.Equal(t, added.ID, merged.ID, "same product and attributes must merge, not duplicate")
	assert.Equal(t, 5, merged.Quantity)
	assert.Len(t, c.Items(), 1)
}

func TestAddItem_DifferentAttrsCreateSeparateLines(t *testing.T) {
	c := NewController("s1", nil)

	a := testLine(1, 10_000, 1)
	a.VariantAttrs = map[string]string{"talla": "M"}
	b := testLine(1, 10_000, 1)
	b.VariantAttrs = map[string]string{"talla": "L"}

	_, err := c.AddItem(a)
	require.NoError(t, err)
	_, err = c.AddItem(b)
	require.NoError(t, err)

	assert.Len(t, c.Items(), 2)
}

func TestAddItem_StockCeilingOnMerge(t *testing.T) {
	c := NewController("s1", nil)

	first := testLine(1, 10_000, 2)
	first.MaxStock = intPtr(5)
	_, err := c.AddItem(first)
	require.NoError(t, err)

	second := testLine(1, 10_000, 3)
	second.MaxStock = intPtr(5)
	_, err = c.AddItem(second)
	require.NoError(t, err)

	// 5 already in the cart; one more unit would exceed the ceiling.
	third := testLine(1, 10_000, 1)
	third.MaxStock = intPtr(5)
	_, err = c.AddItem(third)
	assert.ErrorIs(t, err, ErrStockCeiling)

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 5, items[0].Quantity, "failed add must leave the cart unchanged")
}

func TestAddItem_StockAvailableActsAsCeiling(t *testing.T) {
	c := NewController("s1", nil)

	line := testLine(1, 10_000, 4)
	line.StockAvailable = intPtr(3)
	_, err := c.AddItem(line)
	assert.ErrorIs(t, err, ErrStockCeiling)
	assert.Empty(t, c.Items())
}

func TestAddItem_FreshStockInfoWinsOnMerge(t *testing.T) {
	c := NewController("s1", nil)

	first := testLine(1, 10_000, 2)
	first.MaxStock = intPtr(3)
	_, err := c.AddItem(first)
	require.NoError(t, err)

	// Restock happened between adds; the new ceiling allows the merge.
	second := testLine(1, 10_000, 4)
	second.MaxStock = intPtr(10)
	merged, err := c.AddItem(second)
	require.NoError(t, err)
	assert.Equal(t, 6, merged.Quantity)
}

func TestRemoveItem_AbsentIsNoOp(t *testing.T) {
	c := NewController("s1", nil)
	line, err := c.AddItem(testLine(1, 10_000, 1))
	require.NoError(t, err)

	c.RemoveItem("no-such-line")
	assert.Len(t, c.Items(), 1)

	c.RemoveItem(line.ID)
	assert.Empty(t, c.Items())
}

func TestUpdateQuantity_ZeroRemovesLine(t *testing.T) {
	c := NewController("s1", nil)
	line, err := c.AddItem(testLine(1, 10_000, 3))
	require.NoError(t, err)

	require.NoError(t, c.UpdateQuantity(line.ID, 0))
	assert.Empty(t, c.Items(), "updateQuantity(0) must behave exactly like remove")
}

func TestUpdateQuantity_EnforcesCeiling(t *testing.T) {
	c := NewController("s1", nil)
	l := testLine(1, 10_000, 2)
	l.MaxStock = intPtr(4)
	line, err := c.AddItem(l)
	require.NoError(t, err)

	err = c.UpdateQuantity(line.ID, 5)
	assert.ErrorIs(t, err, ErrStockCeiling)

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 2, items[0].Quantity)

	require.NoError(t, c.UpdateQuantity(line.ID, 4))
	assert.Equal(t, 4, c.Items()[0].Quantity)
}

func TestClearCart_KeepsSelections(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 10_000, 1))
	require.NoError(t, err)
	fillShippingAddress(c)

	c.ClearCart()

	assert.Empty(t, c.Items())
	assert.NotNil(t, c.ShippingAddress())
}

func TestTotals_DeriveFromLines(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 30_000, 2)) // 60 000
	require.NoError(t, err)
	_, err = c.AddItem(testLine(2, 15_000, 1)) // 15 000
	require.NoError(t, err)

	tot := c.Totals()
	assert.Equal(t, int64(75_000), tot.SubtotalCents)
	assert.Equal(t, int64(14_250), tot.TaxCents)
	assert.Equal(t, BaseShippingCents, tot.ShippingCents)
	assert.Equal(t, int64(75_000+14_250+15_000), tot.TotalCents)
	assert.Equal(t, 3, tot.ItemCount)
}

func TestTotals_FreeShippingBoundary(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 199_999, 1))
	require.NoError(t, err)
	assert.Equal(t, BaseShippingCents, c.Shipping(), "one unit below the threshold still pays shipping")

	line, err := c.AddItem(testLine(2, 1, 1))
	require.NoError(t, err)
	assert.Equal(t, int64(0), c.Shipping(), "exactly at the threshold ships free")

	c.RemoveItem(line.ID)
	assert.Equal(t, BaseShippingCents, c.Shipping())
}

func TestTotals_EmptyCartShipsNothing(t *testing.T) {
	c := NewController("s1", nil)
	tot := c.Totals()
	assert.Equal(t, int64(0), tot.ShippingCents)
	assert.Equal(t, int64(0), tot.TotalCents)
}

func TestSetShippingCost_OverridesThresholdRule(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 250_000, 1))
	require.NoError(t, err)
	require.Equal(t, int64(0), c.Shipping())

	c.SetShippingCost(22_500)
	assert.Equal(t, int64(22_500), c.Shipping())

	c.ResetCheckout()
	assert.Equal(t, int64(0), c.Shipping(), "reset drops the explicit quote")
}

func TestStepMachine_BlocksOnEmptyCart(t *testing.T) {
	c := NewController("s1", nil)

	assert.False(t, c.CanProceedToNextStep())
	assert.False(t, c.GoToNextStep())
	assert.Equal(t, StepCart, c.CurrentStep())
	assert.Contains(t, c.ValidationErrors(), "cart")
}

func TestStepMachine_FullHappyPath(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 50_000, 1))
	require.NoError(t, err)

	require.True(t, c.GoToNextStep())
	assert.Equal(t, StepShipping, c.CurrentStep())

	// Shipping gate
	assert.False(t, c.GoToNextStep())
	assert.Contains(t, c.ValidationErrors(), "shipping_address")
	fillShippingAddress(c)
	require.True(t, c.GoToNextStep())
	assert.Equal(t, StepPayment, c.CurrentStep())
	assert.Nil(t, c.ValidationErrors(), "advancing clears validation errors")

	// Payment gate
	assert.False(t, c.GoToNextStep())
	c.SetPaymentInfo(PaymentSelection{Method: "pse"})
	require.True(t, c.GoToNextStep())
	assert.Equal(t, StepConfirmation, c.CurrentStep())

	// Last step never advances.
	assert.False(t, c.GoToNextStep())
}

func TestStepMachine_IncompleteAddressBlocks(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 50_000, 1))
	require.NoError(t, err)
	require.True(t, c.GoToNextStep())

	c.SetShippingAddress(ShippingAddress{Name: "Laura Gómez", City: "Bogotá"})
	assert.False(t, c.GoToNextStep())
	errs := c.ValidationErrors()
	assert.Contains(t, errs, "phone")
	assert.Contains(t, errs, "address")
}

func TestGoToPreviousStep_NoOpAtFirst(t *testing.T) {
	c := NewController("s1", nil)
	c.GoToPreviousStep()
	assert.Equal(t, StepCart, c.CurrentStep())
}

func TestSetCurrentStep_BackwardOnly(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 50_000, 1))
	require.NoError(t, err)
	require.True(t, c.GoToNextStep())
	fillShippingAddress(c)
	require.True(t, c.GoToNextStep())
	require.Equal(t, StepPayment, c.CurrentStep())

	assert.False(t, c.SetCurrentStep(StepConfirmation), "forward jumps bypassing validation are rejected")
	assert.True(t, c.SetCurrentStep(StepCart))
	assert.Equal(t, StepCart, c.CurrentStep())

	assert.False(t, c.SetCurrentStep(Step("bodega")))
}

func TestSetProcessing_GuardsDoubleSubmit(t *testing.T) {
	c := NewController("s1", nil)

	require.True(t, c.SetProcessing(true))
	assert.False(t, c.SetProcessing(true), "second submission while in flight must fail")
	assert.True(t, c.IsProcessing())

	require.True(t, c.SetProcessing(false))
	assert.False(t, c.IsProcessing())
	assert.True(t, c.SetProcessing(true))
}

func TestProcessing_BlocksStepAdvance(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 50_000, 1))
	require.NoError(t, err)

	require.True(t, c.SetProcessing(true))
	assert.False(t, c.CanProceedToNextStep())
	assert.False(t, c.GoToNextStep())
	assert.Equal(t, StepCart, c.CurrentStep())
}

func TestAddSavedAddress_DefaultDemotesOthers(t *testing.T) {
	c := NewController("s1", nil)

	first := c.AddSavedAddress(ShippingAddress{Name: "Casa", City: "Bogotá", IsDefault: true})
	assert.NotEmpty(t, first.ID)

	second := c.AddSavedAddress(ShippingAddress{Name: "Oficina", City: "Medellín", IsDefault: true})

	saved := c.SavedAddresses()
	require.Len(t, saved, 2)
	for _, a := range saved {
		if a.ID == second.ID {
			assert.True(t, a.IsDefault)
		} else {
			assert.False(t, a.IsDefault, "only one default address at a time")
		}
	}
}

func TestAddSavedAddress_UpsertsByID(t *testing.T) {
	c := NewController("s1", nil)
	a := c.AddSavedAddress(ShippingAddress{Name: "Casa", City: "Bogotá"})

	a.City = "Cali"
	c.AddSavedAddress(a)

	saved := c.SavedAddresses()
	require.Len(t, saved, 1)
	assert.Equal(t, "Cali", saved[0].City)
}

func TestRemoveSavedAddress(t *testing.T) {
	c := NewController("s1", nil)
	a := c.AddSavedAddress(ShippingAddress{Name: "Casa", City: "Bogotá"})

	c.RemoveSavedAddress("missing")
	assert.Len(t, c.SavedAddresses(), 1)

	c.RemoveSavedAddress(a.ID)
	assert.Empty(t, c.SavedAddresses())
}

func TestErrors_SetAndClear(t *testing.T) {
	c := NewController("s1", nil)

	c.SetError("algo salió mal")
	assert.Equal(t, "algo salió mal", c.Error())
	c.SetError("")
	assert.Empty(t, c.Error())

	c.SetValidationErrors(map[string]string{"phone": "teléfono requerido"})
	got := c.ValidationErrors()
	assert.Equal(t, "teléfono requerido", got["phone"])
	got["phone"] = "mutated"
	assert.Equal(t, "teléfono requerido", c.ValidationErrors()["phone"], "returned map is a copy")

	c.SetError("x")
	c.ClearErrors()
	assert.Empty(t, c.Error())
	assert.Nil(t, c.ValidationErrors())
}

func TestResetCheckout_KeepsCartOnly(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 50_000, 2))
	require.NoError(t, err)
	saved := c.AddSavedAddress(ShippingAddress{Name: "Casa", City: "Bogotá"})

	require.True(t, c.GoToNextStep())
	fillShippingAddress(c)
	require.True(t, c.GoToNextStep())
	c.SetPaymentInfo(PaymentSelection{Method: "card"})
	c.SetOrderNotes("dejar en portería")
	c.SetOrderID("MER-ABC-123")
	c.SetError("boom")

	c.ResetCheckout()

	assert.Equal(t, StepCart, c.CurrentStep())
	assert.Len(t, c.Items(), 1, "reset never touches the cart")
	assert.Nil(t, c.ShippingAddress())
	assert.Nil(t, c.PaymentInfo())
	assert.Empty(t, c.OrderNotes())
	assert.Empty(t, c.OrderID())
	assert.Empty(t, c.Error())
	assert.False(t, c.IsProcessing())

	// The address book survives resets; it belongs to the buyer, not the flow.
	assert.Equal(t, []ShippingAddress{saved}, c.SavedAddresses())
}

func TestSubscribe_EmitsOnCartModification(t *testing.T) {
	c := NewController("s1", nil)

	var events []Event
	c.Subscribe(func(ev Event) { events = append(events, ev) })

	line, err := c.AddItem(testLine(1, 10_000, 1))
	require.NoError(t, err)

	require.Len(t, events, 1)
	assert.Equal(t, EventCartModified, events[0].Kind)
	assert.Equal(t, line.ID, events[0].Line.ID)
}

func TestRestore_HydratesPersistedSubsetOnly(t *testing.T) {
	store := newMemorySnapshotStore()
	seed := NewController("s1", store)
	_, err := seed.AddItem(testLine(1, 10_000, 2))
	require.NoError(t, err)
	seed.AddSavedAddress(ShippingAddress{Name: "Casa", City: "Bogotá"})
	seed.SetOrderNotes("timbre dañado, llamar")
	require.True(t, seed.GoToNextStep())

	waitForSnapshot(t, store, "s1", func(s *Snapshot) bool {
		return len(s.Items) == 1 && len(s.SavedAddresses) == 1 && s.OrderNotes != ""
	})

	fresh := NewController("s1", store)
	require.NoError(t, fresh.Restore(context.Background()))

	assert.Len(t, fresh.Items(), 1)
	assert.Len(t, fresh.SavedAddresses(), 1)
	assert.Equal(t, "timbre dañado, llamar", fresh.OrderNotes())
	assert.Equal(t, StepCart, fresh.CurrentStep(), "step is transient and starts fresh")
	assert.Nil(t, fresh.ShippingAddress())
}

func TestRestore_MissingSnapshotStartsEmpty(t *testing.T) {
	c := NewController("never-seen", newMemorySnapshotStore())
	require.NoError(t, c.Restore(context.Background()))
	assert.Empty(t, c.Items())
}

func TestPersist_StaleSnapshotNeverOverwritesNewer(t *testing.T) {
	store := newMemorySnapshotStore()
	c := NewController("s1", store)

	const last = 40
	for i := 0; i <= last; i++ {
		c.SetOrderNotes(fmt.Sprintf("nota %03d", i))
	}

	want := fmt.Sprintf("nota %03d", last)
	waitForSnapshot(t, store, "s1", func(s *Snapshot) bool { return s.OrderNotes == want })

	// Stragglers carrying an older snapshot must be dropped, not written
	// over the newest state.
	time.Sleep(50 * time.Millisecond)
	snap, ok := store.peek("s1")
	require.True(t, ok)
	assert.Equal(t, want, snap.OrderNotes)

	notes := store.savedNotes()
	assert.True(t, sort.StringsAreSorted(notes), "an older snapshot landed after a newer one: %v", notes)
}

// Submission protocol, end to end: lock the processing flag, record the
// order id, release the flag, then advance to confirmation.
func TestSubmissionProtocol_ReachesConfirmation(t *testing.T) {
	c := NewController("s1", nil)
	_, err := c.AddItem(testLine(1, 120_000, 1))
	require.NoError(t, err)
	require.True(t, c.GoToNextStep())
	fillShippingAddress(c)
	require.True(t, c.GoToNextStep())
	c.SetPaymentInfo(PaymentSelection{Method: "pse"})
	require.Equal(t, StepPayment, c.CurrentStep())

	require.True(t, c.SetProcessing(true))
	require.True(t, c.ValidateCurrentStep())

	// While the guard is held nothing advances; the order is created by the
	// collaborator during this window.
	require.False(t, c.GoToNextStep())
	c.SetOrderID("MER-ABCD-1234")

	require.True(t, c.SetProcessing(false))
	require.True(t, c.GoToNextStep(), "releasing the guard must unblock the advance")
	assert.Equal(t, StepConfirmation, c.CurrentStep())
	assert.True(t, c.ValidateCurrentStep(), "confirmation validates once the order id is set")

	c.ClearCart()
	assert.Empty(t, c.Items())
	assert.Equal(t, "MER-ABCD-1234", c.OrderID())
}

// Example scenario: two adds for the same variant at max stock 5, then a
// third add of one more unit is rejected without touching the cart.
func TestScenario_MergeThenCeilingRejection(t *testing.T) {
	c := NewController("s1", nil)

	add := func(qty int) (CartLine, error) {
		l := testLine(7, 80_000, qty)
		l.VariantAttrs = map[string]string{"talla": "M"}
		l.MaxStock = intPtr(5)
		return c.AddItem(l)
	}

	_, err := add(2)
	require.NoError(t, err)
	merged, err := add(3)
	require.NoError(t, err)
	assert.Equal(t, 5, merged.Quantity)

	_, err = add(1)
	assert.ErrorIs(t, err, ErrStockCeiling)

	tot := c.Totals()
	assert.Equal(t, int64(400_000), tot.SubtotalCents)
	assert.Equal(t, 5, tot.ItemCount)
	assert.Equal(t, int64(0), tot.ShippingCents)
}
