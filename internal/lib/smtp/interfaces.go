// Package smtp подключается к почтовому серверу и отдаёт клиента для отправки писем.
package smtp

import "io"

// Client команды SMTP, которые нужны для отправки одного письма.
type Client interface {
	Mail(from string) error
	Rcpt(to string) error
	Data() (io.WriteCloser, error)
	Quit() error
	Close() error
}
