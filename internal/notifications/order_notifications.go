package notifications

import (
	"context"
	"errors"
	"fmt"

	"mercado/internal/domain/pushtokens"

	"github.com/9ssi7/exponent"
)

type OrderEvent string

const (
	OrderPlaced    OrderEvent = "PLACED"
	OrderPaid      OrderEvent = "PAID"
	OrderShipped   OrderEvent = "SHIPPED"
	OrderDelivered OrderEvent = "DELIVERED"
	OrderCancelled OrderEvent = "CANCELLED"
)

// SendOrderNotification pushes an order status update to every device the
// buyer's checkout session registered.
func SendOrderNotification(ctx context.Context, push PushSender, tokens pushtokens.Store, sessionKey string, event OrderEvent, orderNumber string) error {
	tokensMap, err := tokens.GetTokensBySessionKeys(ctx, []string{sessionKey})
	if err != nil {
		return err
	}
	deviceTokens := tokensMap[sessionKey]
	if len(deviceTokens) == 0 {
		return errors.New("no push tokens")
	}

	var title, body string
	switch event {
	case OrderPlaced:
		title = "Pedido recibido"
		body = fmt.Sprintf("Tu pedido %s fue creado. ¡Gracias por tu compra!", orderNumber)
	case OrderPaid:
		title = "Pago confirmado"
		body = fmt.Sprintf("El pago de tu pedido %s fue aprobado 🎉", orderNumber)
	case OrderShipped:
		title = "Pedido despachado"
		body = fmt.Sprintf("Tu pedido %s va en camino", orderNumber)
	case OrderDelivered:
		title = "Pedido entregado"
		body = fmt.Sprintf("Tu pedido %s fue entregado", orderNumber)
	case OrderCancelled:
		title = "Pedido cancelado"
		body = fmt.Sprintf("Tu pedido %s fue cancelado", orderNumber)
	default:
		title = "Actualización de tu pedido"
		body = fmt.Sprintf("Tu pedido %s tiene una novedad", orderNumber)
	}

	msgs := make([]*exponent.Message, 0, len(deviceTokens))
	for _, t := range deviceTokens {
		token := exponent.Token(t)
		msgs = append(msgs, &exponent.Message{
			To:    []*exponent.Token{&token},
			Title: title,
			Body:  body,
			Data: map[string]string{
				"type":        "order",
				"event":       string(event),
				"orderNumber": orderNumber,
				"screen":      "order-detail-screen",
			},
		})
	}

	_, err = push.Publish(ctx, msgs)
	return err
}
