package paymentprovider

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/fitness-courses/internal/config"
	"github.com/magabrotheeeer/fitness-courses/internal/models"
)

const testSecret = "whsec_test"

func testConfig() config.Stripe {
	return config.Stripe{
		SecretKey:     "sk_test_123",
		WebhookSecret: testSecret,
		SuccessURL:    "http://localhost/success",
		CancelURL:     "http://localhost/cancel",
	}
}

func sign(t *testing.T, payload string) string {
	t.Helper()
	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   []byte(payload),
		Secret:    testSecret,
		Timestamp: time.Now(),
	})
	return signed.Header
}

func TestParseWebhook(t *testing.T) {
	c := NewClient(testConfig())

	completed := `{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","client_reference_id":"u-1","metadata":{"user_uid":"u-1","course_id":"42"}}}}`
	expired := `{"id":"evt_2","object":"event","type":"checkout.session.expired","data":{"object":{"id":"cs_2","object":"checkout.session","client_reference_id":"u-2","metadata":{}}}}`
	other := `{"id":"evt_3","object":"event","type":"invoice.paid","data":{"object":{"id":"in_1","object":"invoice"}}}`

	tests := []struct {
		name    string
		payload string
		header  string
		want    *models.CheckoutEvent
		wantErr error
	}{
		{
			name:    "completed",
			payload: completed,
			want:    &models.CheckoutEvent{Type: EventCheckoutCompleted, SessionID: "cs_1", UserUID: "u-1", CourseID: 42},
		},
		{
			name:    "expired falls back to client reference",
			payload: expired,
			want:    &models.CheckoutEvent{Type: EventCheckoutExpired, SessionID: "cs_2", UserUID: "u-2"},
		},
		{
			name:    "unrelated event",
			payload: other,
			want:    &models.CheckoutEvent{Type: "invoice.paid"},
		},
		{
			name:    "bad signature",
			payload: completed,
			header:  fmt.Sprintf("t=%d,v1=deadbeef", time.Now().Unix()),
			wantErr: models.ErrInvalidSignature,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			header := tt.header
			if header == "" {
				header = sign(t, tt.payload)
			}
			got, err := c.ParseWebhook([]byte(tt.payload), header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateCheckout(t *testing.T) {
	var form map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/checkout/sessions", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))
		require.NoError(t, r.ParseForm())
		form = r.PostForm
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/pay/cs_test_1"}`))
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	c := NewClientWithBackend(testConfig(), backend)

	sess, err := c.CreateCheckout(context.Background(), CheckoutParams{
		UserUID:     "u-1",
		Email:       "anna@fit.io",
		CourseID:    42,
		CourseTitle: "Пресс",
		AmountCents: 1990,
		Currency:    "usd",
	})
	require.NoError(t, err)
	assert.Equal(t, "cs_test_1", sess.ID)
	assert.Equal(t, "https://checkout.stripe.com/pay/cs_test_1", sess.URL)

	assert.Equal(t, []string{"payment"}, form["mode"])
	assert.Equal(t, []string{"u-1"}, form["metadata[user_uid]"])
	assert.Equal(t, []string{"42"}, form["metadata[course_id]"])
	assert.Equal(t, []string{"1990"}, form["line_items[0][price_data][unit_amount]"])
}

func TestCreateCheckoutRepeatedGetsNewSession(t *testing.T) {
	// Stripe отвечает той же сессией на повтор ключа идемпотентности
	sessions := map[string]string{}
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("Idempotency-Key")
		keys = append(keys, key)
		id, ok := sessions[key]
		if !ok {
			id = fmt.Sprintf("cs_test_%d", len(sessions)+1)
			sessions[key] = id
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"id":%q,"object":"checkout.session","url":"https://checkout.stripe.com/pay/%s"}`, id, id)
	}))
	defer srv.Close()

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(srv.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	c := NewClientWithBackend(testConfig(), backend)
	params := CheckoutParams{UserUID: "u-1", CourseID: 42, CourseTitle: "Пресс", AmountCents: 1990, Currency: "usd"}

	first, err := c.CreateCheckout(context.Background(), params)
	require.NoError(t, err)
	second, err := c.CreateCheckout(context.Background(), params)
	require.NoError(t, err)

	require.Len(t, keys, 2)
	assert.NotEmpty(t, keys[0])
	assert.NotEqual(t, keys[0], keys[1])
	assert.NotEqual(t, first.ID, second.ID)
}
