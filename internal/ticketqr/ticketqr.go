// Package ticketqr renders the QR code shown for a confirmed booking.
package ticketqr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/skip2/go-qrcode"

	"ticketkenya/internal/models"
)

var ErrNotConfirmed = errors.New("tickets are issued once the booking is confirmed")

type Payload struct {
	BookingID  int64  `json:"bookingId"`
	EventTitle string `json:"eventTitle"`
	Quantity   int    `json:"quantity"`
}

// FromBooking refuses anything that is not confirmed.
func FromBooking(b models.UserBooking) (Payload, error) {
	if b.BookingStatus != string(models.BookingConfirmed) {
		return Payload{}, ErrNotConfirmed
	}
	return Payload{BookingID: b.BookingID, EventTitle: b.EventTitle, Quantity: b.Quantity}, nil
}

// Generator encodes payloads. With a secret the payload is AES-CFB
// encrypted before encoding so only the gate scanner can read it.
type Generator struct {
	secret []byte
}

func NewGenerator(secret string) *Generator {
	if secret == "" {
		return &Generator{}
	}
	hashed := sha256.Sum256([]byte(secret))
	return &Generator{secret: hashed[:]}
}

func (g *Generator) content(p Payload) (string, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return "", err
	}
	if g.secret == nil {
		return string(data), nil
	}
	return encryptAES(data, g.secret)
}

func (g *Generator) PNG(p Payload, size int) ([]byte, error) {
	content, err := g.content(p)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(content, qrcode.Medium, size)
}

// Terminal returns the code drawn with half-block characters.
func (g *Generator) Terminal(p Payload) (string, error) {
	content, err := g.content(p)
	if err != nil {
		return "", err
	}
	q, err := qrcode.New(content, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr: %w", err)
	}
	return q.ToSmallString(false), nil
}

// Decrypt reverses the encryption applied by a Generator with the same
// secret.
func (g *Generator) Decrypt(content string) (Payload, error) {
	var p Payload
	data := []byte(content)
	if g.secret != nil {
		raw, err := base64.URLEncoding.DecodeString(content)
		if err != nil {
			return p, fmt.Errorf("decode qr content: %w", err)
		}
		if len(raw) < aes.BlockSize {
			return p, errors.New("qr content too short")
		}
		block, err := aes.NewCipher(g.secret)
		if err != nil {
			return p, err
		}
		data = raw[aes.BlockSize:]
		cipher.NewCFBDecrypter(block, raw[:aes.BlockSize]).XORKeyStream(data, data)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("decode qr payload: %w", err)
	}
	return p, nil
}

func encryptAES(data []byte, key []byte) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	ciphertext := make([]byte, aes.BlockSize+len(data))
	iv := ciphertext[:aes.BlockSize]

	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}

	stream := cipher.NewCFBEncrypter(block, iv)
	stream.XORKeyStream(ciphertext[aes.BlockSize:], data)

	return base64.URLEncoding.EncodeToString(ciphertext), nil
}
