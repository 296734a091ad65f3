package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Signer computes and verifies the gateway's HMAC-SHA256 signatures. The
// checkout flow and the webhook flow use different secrets, so each gets its
// own Signer.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer for the given shared secret.
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// SignPayment computes the signature the gateway attaches to a captured
// payment: HMAC over "<gateway order id>|<payment id>".
func (s *Signer) SignPayment(gatewayOrderID, paymentID string) string {
	return s.sign([]byte(gatewayOrderID + "|" + paymentID))
}

// VerifyPayment checks a client-reported payment signature in constant time.
func (s *Signer) VerifyPayment(gatewayOrderID, paymentID, signature string) bool {
	return s.verify([]byte(gatewayOrderID+"|"+paymentID), signature)
}

// SignBody computes a webhook-style signature over a raw payload.
func (s *Signer) SignBody(body []byte) string {
	return s.sign(body)
}

// VerifyBody checks a webhook signature computed over the raw request body.
func (s *Signer) VerifyBody(body []byte, signature string) bool {
	return s.verify(body, signature)
}

func (s *Signer) sign(payload []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func (s *Signer) verify(payload []byte, signature string) bool {
	want, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), want)
}
