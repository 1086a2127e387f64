package telegram

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInitDataInvalid = errors.New("telegram: init data signature mismatch")
	ErrInitDataExpired = errors.New("telegram: init data expired")
	ErrInitDataMissing = errors.New("telegram: init data incomplete")
)

// WebAppData is the verified payload a Mini App receives on launch.
type WebAppData struct {
	User         User
	ChatInstance string
	ChatType     string
	AuthDate     time.Time
	QueryID      string
}

// secretKey derives the WebApp signing key from the bot token.
func secretKey(botToken string) []byte {
	mac := hmac.New(sha256.New, []byte("WebAppData"))
	mac.Write([]byte(botToken))
	return mac.Sum(nil)
}

// dataCheckString joins every field except hash as sorted key=value lines.
func dataCheckString(values url.Values) string {
	keys := make([]string, 0, len(values))
	for k := range values {
		if k == "hash" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		lines[i] = k + "=" + values.Get(k)
	}
	return strings.Join(lines, "\n")
}

// Sign computes the hash field for values. Used by tests and local tooling
// to produce init data the server accepts.
func Sign(values url.Values, botToken string) string {
	mac := hmac.New(sha256.New, secretKey(botToken))
	mac.Write([]byte(dataCheckString(values)))
	return hex.EncodeToString(mac.Sum(nil))
}

// ValidateInitData checks the signature and age of a raw init data query
// string. A zero ttl disables the age check.
func ValidateInitData(raw, botToken string, ttl time.Duration, now time.Time) (*WebAppData, error) {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInitDataMissing, err)
	}
	hash := values.Get("hash")
	if hash == "" {
		return nil, ErrInitDataMissing
	}
	if !hmac.Equal([]byte(Sign(values, botToken)), []byte(strings.ToLower(hash))) {
		return nil, ErrInitDataInvalid
	}

	authUnix, err := strconv.ParseInt(values.Get("auth_date"), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: auth_date", ErrInitDataMissing)
	}
	authDate := time.Unix(authUnix, 0).UTC()
	if ttl > 0 && now.Sub(authDate) > ttl {
		return nil, ErrInitDataExpired
	}

	data := &WebAppData{
		ChatInstance: values.Get("chat_instance"),
		ChatType:     values.Get("chat_type"),
		AuthDate:     authDate,
		QueryID:      values.Get("query_id"),
	}
	rawUser := values.Get("user")
	if rawUser == "" {
		return nil, fmt.Errorf("%w: user", ErrInitDataMissing)
	}
	if err := json.Unmarshal([]byte(rawUser), &data.User); err != nil {
		return nil, fmt.Errorf("%w: user: %v", ErrInitDataMissing, err)
	}
	if data.User.ID == 0 {
		return nil, fmt.Errorf("%w: user id", ErrInitDataMissing)
	}
	return data, nil
}
