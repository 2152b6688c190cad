package services

import (
	"bytes"
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"image/png"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/learnpay/backend/internal/models"
	"github.com/skip2/go-qrcode"
)

// QRService issues short-lived funding QR codes. A tutor shares the QR
// with a payer; scanning it yields the funding reference the payer quotes
// to the payment gateway. Reconciliation still goes through the gateway
// verification path; the QR is only a reference carrier.
type QRService struct {
	db    *sql.DB
	redis *redis.Client
}

func NewQRService(db *sql.DB, redisClient *redis.Client) *QRService {
	return &QRService{
		db:    db,
		redis: redisClient,
	}
}

// GenerateFundingQR creates a funding reference for an owner and renders
// it as a QR code. The payload lives in redis for five minutes.
func (s *QRService) GenerateFundingQR(ctx context.Context, owner models.OwnerRef, amount int64, currency string) (string, string, error) {
	qrData := map[string]any{
		"ownerId":   owner.ID,
		"ownerKind": string(owner.Kind),
		"amount":    amount,
		"currency":  currency,
		"timestamp": time.Now().Unix(),
		"nonce":     s.generateNonce(),
	}

	jsonData, err := json.Marshal(qrData)
	if err != nil {
		return "", "", err
	}

	reference := base64.URLEncoding.EncodeToString(jsonData)

	key := fmt.Sprintf("funding-qr:%s", reference)
	if err := s.redis.Set(ctx, key, jsonData, 5*time.Minute).Err(); err != nil {
		return "", "", err
	}

	qr, err := qrcode.New(reference, qrcode.Medium)
	if err != nil {
		return "", "", err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, qr.Image(256)); err != nil {
		return "", "", err
	}

	qrImage := base64.StdEncoding.EncodeToString(buf.Bytes())

	return reference, qrImage, nil
}

// ResolveFundingQR returns the funding payload for a scanned reference
// and invalidates it so the same QR cannot be resolved twice.
func (s *QRService) ResolveFundingQR(ctx context.Context, reference string) (map[string]any, error) {
	key := fmt.Sprintf("funding-qr:%s", reference)

	data, err := s.redis.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("invalid or expired funding QR")
	}
	if err != nil {
		return nil, err
	}

	var result map[string]any
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, err
	}

	s.redis.Del(ctx, key)

	return result, nil
}

func (s *QRService) generateNonce() string {
	b := make([]byte, 16)
	rand.Read(b)
	return base64.URLEncoding.EncodeToString(b)
}
