// Package email provee el notificador de cuenta usado por el password grant
// (aviso de lockout). El envío es best-effort: los fallos se loguean y nunca
// afectan la respuesta del protocolo.
package email

import "context"

// Message es un correo a enviar.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Sender envía correos transaccionales.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Noop descarta todos los mensajes (dev / tests).
type Noop struct{}

func (Noop) Send(context.Context, Message) error { return nil }
