package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrStockCeiling signals that the requested quantity would exceed the
	// line's stock ceiling. The cart is left unchanged.
	ErrStockCeiling = errors.New("quantity exceeds available stock")

	// ErrInvalidQuantity signals a non-positive quantity on AddItem.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

const persistTimeout = 2 * time.Second

// Controller owns the cart contents, shipping/payment selections, the
// checkout step machine and derived totals for one checkout session. UI
// layers dispatch intents and read queries; they never touch state directly.
//
// Every intent is atomic: state is guarded by a mutex, so a reader never
// observes a partial update. The only asynchronous boundary is order
// submission, guarded by the processing flag.
type Controller struct {
	mu sync.Mutex

	// persisted subset
	items          []CartLine
	savedAddresses []ShippingAddress
	orderNotes     string

	// transient, reset each session
	step             Step
	processing       bool
	shippingAddress  *ShippingAddress
	payment          *PaymentSelection
	shippingQuote    *int64
	orderID          string
	errMsg           string
	validationErrors map[string]string

	key       string
	store     SnapshotStore
	listeners []Listener

	// persistSeq numbers snapshots at mutation time (guarded by mu);
	// persistedSeq tracks the newest one written (guarded by persistMu).
	persistSeq   uint64
	persistMu    sync.Mutex
	persistedSeq uint64
}

// NewController returns a controller for the given session key. store may be
// nil, in which case nothing is persisted. Call Restore to hydrate the
// persisted subset from a previous session.
func NewController(key string, store SnapshotStore) *Controller {
	return &Controller{
		key:   key,
		store: store,
		step:  StepCart,
	}
}

// Subscribe registers a listener for controller events.
func (c *Controller) Subscribe(fn Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Restore loads the persisted subset for this session key. A missing
// snapshot is not an error: the controller simply starts empty. Transient
// state (step, selections, errors) always starts fresh. Persisted lines may
// reference stock limits that have since changed; no repair is attempted
// here, stock is re-validated by the order-placement collaborator.
func (c *Controller) Restore(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	snap, err := c.store.Load(ctx, c.key)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			return nil
		}
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = snap.Items
	c.savedAddresses = snap.SavedAddresses
	c.orderNotes = snap.OrderNotes
	return nil
}

func (c *Controller) snapshotLocked() *Snapshot {
	snap := &Snapshot{
		Items:          make([]CartLine, len(c.items)),
		SavedAddresses: make([]ShippingAddress, len(c.savedAddresses)),
		OrderNotes:     c.orderNotes,
	}
	copy(snap.Items, c.items)
	copy(snap.SavedAddresses, c.savedAddresses)
	return snap
}

// persistLocked writes the persisted subset fire-and-forget. A lost write is
// recovered by the next mutation; there is no transactional grouping. The
// save goroutines race each other, so each snapshot carries a sequence
// number and a stale one is dropped instead of overwriting a newer write.
func (c *Controller) persistLocked() {
	if c.store == nil {
		return
	}
	c.persistSeq++
	seq := c.persistSeq
	snap := c.snapshotLocked()
	key := c.key
	store := c.store
	go func() {
		c.persistMu.Lock()
		defer c.persistMu.Unlock()
		if seq <= c.persistedSeq {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := store.Save(ctx, key, snap); err == nil {
			c.persistedSeq = seq
		}
	}()
}

// emit calls the listeners registered at the time of the mutation. It runs
// outside the state lock so a listener can safely query the controller.
func emit(listeners []Listener, ev Event) {
	for _, fn := range listeners {
		fn(ev)
	}
}

// --- Cart mutations ---

// AddItem inserts a new line or merges into an existing one with the same
// product and variant attributes. The line's ID is assigned here. If the
// resulting quantity would exceed the stock ceiling the cart is left
// unchanged and ErrStockCeiling is returned.
func (c *Controller) AddItem(line CartLine) (CartLine, error) {
	if line.Quantity < 1 {
		return CartLine{}, ErrInvalidQuantity
	}

	c.mu.Lock()
	for i := range c.items {
		if !sameVariant(c.items[i], line) {
			continue
		}
		// Merge. Fresh stock info from the add wins over what the line
		// remembered from a previous session.
		merged := c.items[i]
		if line.StockAvailable != nil {
			merged.StockAvailable = line.StockAvailable
		}
		if line.MaxStock != nil {
			merged.MaxStock = line.MaxStock
		}
		if merged.Quantity+line.Quantity > merged.stockCeiling() {
			c.mu.Unlock()
			return CartLine{}, ErrStockCeiling
		}
		merged.Quantity += line.Quantity
		merged.UnitPriceCents = line.UnitPriceCents
		c.items[i] = merged
		c.persistLocked()
		ls := c.listeners
		c.mu.Unlock()
		emit(ls, Event{Kind: EventCartModified, Line: merged})
		return merged, nil
	}

	if line.Quantity > line.stockCeiling() {
		c.mu.Unlock()
		return CartLine{}, ErrStockCeiling
	}
	line.ID = uuid.NewString()
	c.items = append(c.items, line)
	c.persistLocked()
	ls := c.listeners
	c.mu.Unlock()
	emit(ls, Event{Kind: EventCartModified, Line: line})
	return line, nil
}

// RemoveItem removes the line with the given id. Removing an absent line is
// a no-op.
func (c *Controller) RemoveItem(lineID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID == lineID {
			c.items = append(c.items[:i], c.items[i+1:]...)
			c.persistLocked()
			return
		}
	}
}

// UpdateQuantity replaces a line's quantity. A quantity of zero (or less)
// removes the line. The stock ceiling is enforced here the same way it is on
// AddItem, so a line can never be edited above known availability.
func (c *Controller) UpdateQuantity(lineID string, quantity int) error {
	if quantity <= 0 {
		c.RemoveItem(lineID)
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.items {
		if c.items[i].ID != lineID {
			continue
		}
		if quantity > c.items[i].stockCeiling() {
			return ErrStockCeiling
		}
		c.items[i].Quantity = quantity
		c.persistLocked()
		return nil
	}
	return nil
}

// ClearCart removes every line. Step, shipping and payment selections are
// untouched.
func (c *Controller) ClearCart() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
	c.persistLocked()
}

// --- Step machine ---

// step validation is a table, not a switch, so new steps only add an entry.
var stepValidators = map[Step]func(c *Controller) map[string]string{
	StepCart: func(c *Controller) map[string]string {
		if len(c.items) == 0 {
			return map[string]string{"cart": "el carrito está vacío"}
		}
		return nil
	},
	StepShipping: func(c *Controller) map[string]string {
		errs := map[string]string{}
		a := c.shippingAddress
		if a == nil {
			return map[string]string{"shipping_address": "dirección de envío requerida"}
		}
		if a.Name == "" {
			errs["name"] = "nombre requerido"
		}
		if a.Phone == "" {
			errs["phone"] = "teléfono requerido"
		}
		if a.Address == "" {
			errs["address"] = "dirección requerida"
		}
		if a.City == "" {
			errs["city"] = "ciudad requerida"
		}
		if len(errs) == 0 {
			return nil
		}
		return errs
	},
	StepPayment: func(c *Controller) map[string]string {
		if c.payment == nil || c.payment.Method == "" {
			return map[string]string{"payment_method": "método de pago requerido"}
		}
		return nil
	},
	StepConfirmation: func(c *Controller) map[string]string {
		if c.orderID == "" {
			return map[string]string{"order_id": "la orden no ha sido creada"}
		}
		return nil
	},
}

func (c *Controller) validateStepLocked(s Step) map[string]string {
	if fn, ok := stepValidators[s]; ok {
		return fn(c)
	}
	return nil
}

// CurrentStep returns the step the session is at.
func (c *Controller) CurrentStep() Step {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// ValidateCurrentStep reports whether the current step's requirements are
// met. It does not mutate the validation-errors map.
func (c *Controller) ValidateCurrentStep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.validateStepLocked(c.step)) == 0
}

// CanProceedToNextStep reports whether GoToNextStep would succeed right now.
func (c *Controller) CanProceedToNextStep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return false
	}
	if stepIndex(c.step) >= len(stepOrder)-1 {
		return false
	}
	return len(c.validateStepLocked(c.step)) == 0
}

// GoToNextStep advances exactly one step when the current step validates and
// no submission is in flight. On failure it returns false, leaves the step
// unchanged and replaces the validation-errors map with the failing fields.
// Callers must check the return value.
func (c *Controller) GoToNextStep() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.processing {
		return false
	}
	idx := stepIndex(c.step)
	if idx >= len(stepOrder)-1 {
		return false
	}
	if errs := c.validateStepLocked(c.step); len(errs) > 0 {
		c.validationErrors = errs
		return false
	}
	c.step = stepOrder[idx+1]
	c.validationErrors = nil
	return true
}

// GoToPreviousStep moves one step back. At the first step it is a no-op.
// Going back never clears shipping or payment selections.
func (c *Controller) GoToPreviousStep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if idx := stepIndex(c.step); idx > 0 {
		c.step = stepOrder[idx-1]
	}
}

// SetCurrentStep jumps to an earlier (or the same) step. Skipping forward is
// not allowed: forward movement goes through GoToNextStep so validation
// gates cannot be bypassed.
func (c *Controller) SetCurrentStep(s Step) bool {
	target := stepIndex(s)
	if target < 0 {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if target > stepIndex(c.step) {
		return false
	}
	c.step = s
	return true
}

// SetProcessing guards the asynchronous submission boundary. Setting it true
// while a submission is already in flight fails, which is what prevents a
// duplicate order from a double-tapped pay button.
func (c *Controller) SetProcessing(flag bool) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if flag && c.processing {
		return false
	}
	c.processing = flag
	return true
}

// IsProcessing reports whether a submission is in flight.
func (c *Controller) IsProcessing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.processing
}

// --- Selections, notes, order id ---

// SetShippingAddress sets the destination for this order. The selection is
// transient; it is not part of the persisted snapshot.
func (c *Controller) SetShippingAddress(a ShippingAddress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shippingAddress = &a
}

// ShippingAddress returns the current shipping selection, or nil.
func (c *Controller) ShippingAddress() *ShippingAddress {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shippingAddress == nil {
		return nil
	}
	a := *c.shippingAddress
	return &a
}

// SetShippingCost installs an explicit courier quote, overriding the
// free-shipping rule until ResetCheckout.
func (c *Controller) SetShippingCost(cents int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.shippingQuote = &cents
}

// SetPaymentInfo records the chosen payment method. Card or bank details are
// opaque here; only the presence of a method is ever validated.
func (c *Controller) SetPaymentInfo(p PaymentSelection) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.payment = &p
}

// PaymentInfo returns the current payment selection, or nil.
func (c *Controller) PaymentInfo() *PaymentSelection {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.payment == nil {
		return nil
	}
	p := *c.payment
	return &p
}

// SetOrderNotes stores free-form buyer notes. Notes are persisted with the
// cart.
func (c *Controller) SetOrderNotes(notes string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orderNotes = notes
	c.persistLocked()
}

// OrderNotes returns the buyer notes.
func (c *Controller) OrderNotes() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orderNotes
}

// SetOrderID records the identifier assigned by the order-placement
// collaborator after a successful submission.
func (c *Controller) SetOrderID(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orderID = id
}

// OrderID returns the assigned order identifier, or "".
func (c *Controller) OrderID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.orderID
}

// --- Address book ---

// AddSavedAddress upserts an address by id, assigning one when absent. A new
// default demotes every other saved address.
func (c *Controller) AddSavedAddress(a ShippingAddress) ShippingAddress {
	c.mu.Lock()
	defer c.mu.Unlock()
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.IsDefault {
		for i := range c.savedAddresses {
			c.savedAddresses[i].IsDefault = false
		}
	}
	for i := range c.savedAddresses {
		if c.savedAddresses[i].ID == a.ID {
			c.savedAddresses[i] = a
			c.persistLocked()
			return a
		}
	}
	c.savedAddresses = append(c.savedAddresses, a)
	c.persistLocked()
	return a
}

// RemoveSavedAddress removes by id; removing an absent address is a no-op.
func (c *Controller) RemoveSavedAddress(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.savedAddresses {
		if c.savedAddresses[i].ID == id {
			c.savedAddresses = append(c.savedAddresses[:i], c.savedAddresses[i+1:]...)
			c.persistLocked()
			return
		}
	}
}

// SavedAddresses returns a copy of the address book.
func (c *Controller) SavedAddresses() []ShippingAddress {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ShippingAddress, len(c.savedAddresses))
	copy(out, c.savedAddresses)
	return out
}

// --- Error channel ---

// SetError replaces the current error message; "" clears it.
func (c *Controller) SetError(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = msg
}

// Error returns the current error message, or "".
func (c *Controller) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}

// SetValidationErrors replaces the field-keyed validation map wholesale.
func (c *Controller) SetValidationErrors(errs map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.validationErrors = errs
}

// ValidationErrors returns a copy of the field-keyed validation map.
func (c *Controller) ValidationErrors() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.validationErrors) == 0 {
		return nil
	}
	out := make(map[string]string, len(c.validationErrors))
	for k, v := range c.validationErrors {
		out[k] = v
	}
	return out
}

// ClearErrors clears both the error message and the validation map.
func (c *Controller) ClearErrors() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.errMsg = ""
	c.validationErrors = nil
}

// ResetCheckout returns the flow to its initial state: step back to cart,
// selections, quote, notes, order id, processing flag and errors cleared.
// Cart contents are kept.
func (c *Controller) ResetCheckout() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = StepCart
	c.processing = false
	c.shippingAddress = nil
	c.payment = nil
	c.shippingQuote = nil
	c.orderID = ""
	c.orderNotes = ""
	c.errMsg = ""
	c.validationErrors = nil
	c.persistLocked()
}

// --- Queries ---

// Items returns a copy of the cart lines.
func (c *Controller) Items() []CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]CartLine, len(c.items))
	copy(out, c.items)
	return out
}

// CartItem returns the first line for the given product id.
func (c *Controller) CartItem(productID int64) (CartLine, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, l := range c.items {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// HasItem reports whether any line holds the given product id.
func (c *Controller) HasItem(productID int64) bool {
	_, ok := c.CartItem(productID)
	return ok
}

// Totals recomputes every derived value from the current lines.
func (c *Controller) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return computeTotals(c.items, c.shippingQuote)
}

// Subtotal returns Σ(unit price × quantity) over all lines.
func (c *Controller) Subtotal() int64 { return c.Totals().SubtotalCents }

// Tax returns the IVA amount on the current subtotal.
func (c *Controller) Tax() int64 { return c.Totals().TaxCents }

// Shipping returns the effective shipping cost.
func (c *Controller) Shipping() int64 { return c.Totals().ShippingCents }

// Total returns subtotal + tax + shipping.
func (c *Controller) Total() int64 { return c.Totals().TotalCents }

// TotalItemCount returns Σ(quantity) over all lines.
func (c *Controller) TotalItemCount() int { return c.Totals().ItemCount }
