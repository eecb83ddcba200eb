// Package email sends vendor notifications over SMTP.
package email

import (
	"fmt"
	"net/smtp"
)

// Service handles email sending via SMTP
type Service struct {
	host string
	port string
	from string
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewService creates a new email service
func NewService(host, port, from string) *Service {
	return &Service{
		host: host,
		port: port,
		from: from,
		send: smtp.SendMail,
	}
}

// SendOrderNotice mails an order notice to the vendor.
func (s *Service) SendOrderNotice(to string, n OrderNotice) error {
	shortID := n.OrderID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	subject := fmt.Sprintf("%s (order %s)", n.Headline, shortID)
	return s.sendHTML(to, subject, BuildOrderNoticeBody(n))
}

// SendLowStockNotice mails a restock reminder to the vendor.
func (s *Service) SendLowStockNotice(to string, n LowStockNotice) error {
	subject := fmt.Sprintf("Low stock: %s (%d left)", n.Name, n.StockLevel)
	return s.sendHTML(to, subject, BuildLowStockBody(n))
}

func (s *Service) sendHTML(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return s.send(addr, nil, s.from, []string{to}, []byte(msg))
}
