// Package token signs and verifies the opaque tokens carried by tracking URLs.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalid = errors.New("invalid token")
	ErrExpired = errors.New("token expired")
)

// Limits on custom parameters keep tokens short enough for a URL.
const (
	MaxCustomParamKeyLength   = 50
	MaxCustomParamValueLength = 100
	MaxCustomParamsCount      = 10
)

// Claims identify the ad a tracking hit belongs to.
type Claims struct {
	RequestID   string
	AdID        string
	CreativeID  string
	CampaignID  string
	PlacementID string
	PublisherID int
	Price       float64
	// CustomParams echo request custom targeting for {CUSTOM.key} expansion.
	CustomParams map[string]string
	IssuedAt     time.Time
}

// payload is the compact wire form of Claims.
type payload struct {
	ReqID        string            `json:"r"`
	AdID         string            `json:"a"`
	CrID         string            `json:"c"`
	CID          string            `json:"cid"`
	PlacementID  string            `json:"pl"`
	PubID        int               `json:"p,omitempty"`
	Price        float64           `json:"bp,omitempty"`
	TS           int64             `json:"t"`
	CustomParams map[string]string `json:"cp,omitempty"`
}

func validateCustomParams(params map[string]string) error {
	if len(params) > MaxCustomParamsCount {
		return fmt.Errorf("too many custom parameters: %d (max %d)", len(params), MaxCustomParamsCount)
	}
	for key, value := range params {
		if key == "" {
			return fmt.Errorf("custom param key cannot be empty")
		}
		if len(key) > MaxCustomParamKeyLength {
			return fmt.Errorf("custom param key too long: '%s' (%d chars, max %d)", key, len(key), MaxCustomParamKeyLength)
		}
		if len(value) > MaxCustomParamValueLength {
			return fmt.Errorf("custom param value too long for key '%s' (%d chars, max %d)", key, len(value), MaxCustomParamValueLength)
		}
	}
	return nil
}

// Generate creates a signed token for c. A zero IssuedAt is set to now.
func Generate(c Claims, secret []byte) (string, error) {
	if c.CustomParams != nil {
		if err := validateCustomParams(c.CustomParams); err != nil {
			return "", fmt.Errorf("custom parameter validation failed: %w", err)
		}
	}
	issued := c.IssuedAt
	if issued.IsZero() {
		issued = time.Now()
	}
	pl := payload{
		ReqID:        c.RequestID,
		AdID:         c.AdID,
		CrID:         c.CreativeID,
		CID:          c.CampaignID,
		PlacementID:  c.PlacementID,
		PubID:        c.PublisherID,
		Price:        c.Price,
		TS:           issued.Unix(),
		CustomParams: c.CustomParams,
	}
	data, err := json.Marshal(pl)
	if err != nil {
		return "", err
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(data) + "." + enc.EncodeToString(sign(data, secret)), nil
}

// Verify checks the token signature and, when ttl > 0, its age.
func Verify(token string, secret []byte, ttl time.Duration) (Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return Claims{}, ErrInvalid
	}
	enc := base64.RawURLEncoding
	data, err := enc.DecodeString(parts[0])
	if err != nil {
		return Claims{}, ErrInvalid
	}
	sig, err := enc.DecodeString(parts[1])
	if err != nil {
		return Claims{}, ErrInvalid
	}
	if !hmac.Equal(sign(data, secret), sig) {
		return Claims{}, ErrInvalid
	}

	var pl payload
	if err := json.Unmarshal(data, &pl); err != nil {
		return Claims{}, ErrInvalid
	}
	issued := time.Unix(pl.TS, 0)
	if ttl > 0 && time.Since(issued) > ttl {
		return Claims{}, ErrExpired
	}
	return Claims{
		RequestID:    pl.ReqID,
		AdID:         pl.AdID,
		CreativeID:   pl.CrID,
		CampaignID:   pl.CID,
		PlacementID:  pl.PlacementID,
		PublisherID:  pl.PubID,
		Price:        pl.Price,
		CustomParams: pl.CustomParams,
		IssuedAt:     issued,
	}, nil
}

func sign(data, secret []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write(data)
	return mac.Sum(nil)
}
