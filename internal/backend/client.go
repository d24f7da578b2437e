// Package backend is the portal's client for the scheduling REST backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"telehealth-portal/internal/metrics"
	"telehealth-portal/internal/models"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

type bearerKey struct{}

// WithBearer attaches the viewer's access token to ctx; the client forwards it upstream.
func WithBearer(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, bearerKey{}, token)
}

func bearerFrom(ctx context.Context) string {
	token, _ := ctx.Value(bearerKey{}).(string)
	return token
}

// Client talks to the scheduling backend over JSON/HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *metrics.PortalMetrics
	logger     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

// WithMetrics records every call in m.
func WithMetrics(m *metrics.PortalMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// WithLogger sets the client logger.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the backend rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ListAppointments fetches one page of the viewer's appointments.
func (c *Client) ListAppointments(ctx context.Context, q PageQuery) (Page, error) {
	var page Page
	path := "/api/appointments/user/" + url.PathEscape(q.Viewer.ID)
	if err := c.do(ctx, "list_appointments", http.MethodGet, path, q.values(), nil, &page); err != nil {
		return Page{}, err
	}
	if page.Content == nil {
		page.Content = []models.Appointment{}
	}
	return page, nil
}

// ListAllAppointments fetches every appointment of the viewer without pagination.
func (c *Client) ListAllAppointments(ctx context.Context, viewer models.Viewer) ([]models.Appointment, error) {
	params := url.Values{"role": {string(viewer.Role)}}
	var out []models.Appointment
	path := "/api/appointments/user/" + url.PathEscape(viewer.ID) + "/all"
	if err := c.do(ctx, "list_all_appointments", http.MethodGet, path, params, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetAppointment fetches one appointment.
func (c *Client) GetAppointment(ctx context.Context, id string) (models.Appointment, error) {
	var out models.Appointment
	if err := c.do(ctx, "get_appointment", http.MethodGet, "/api/appointments/"+url.PathEscape(id), nil, nil, &out); err != nil {
		return models.Appointment{}, err
	}
	return out, nil
}

// CancelAppointment asks the backend to cancel an appointment.
func (c *Client) CancelAppointment(ctx context.Context, id string) (models.Appointment, error) {
	var out models.Appointment
	path := "/api/appointments/" + url.PathEscape(id) + "/cancel"
	if err := c.do(ctx, "cancel_appointment", http.MethodPut, path, nil, nil, &out); err != nil {
		return models.Appointment{}, err
	}
	return out, nil
}

// RescheduleAppointment moves an appointment to the slot in req.
func (c *Client) RescheduleAppointment(ctx context.Context, id string, req RescheduleRequest) (models.Appointment, error) {
	var out models.Appointment
	path := "/api/appointments/" + url.PathEscape(id) + "/reschedule"
	if err := c.do(ctx, "reschedule_appointment", http.MethodPut, path, nil, req, &out); err != nil {
		return models.Appointment{}, err
	}
	return out, nil
}

// DoctorAvailability fetches a doctor's recurring weekly availability.
func (c *Client) DoctorAvailability(ctx context.Context, doctorID string) ([]models.AvailabilitySlot, error) {
	var out []models.AvailabilitySlot
	path := "/api/availability/doctor/" + url.PathEscape(doctorID)
	if err := c.do(ctx, "doctor_availability", http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DoctorSlots fetches the free concrete slots of a doctor on date (YYYY-MM-DD).
func (c *Client) DoctorSlots(ctx context.Context, doctorID, date string) ([]models.TimeSlot, error) {
	var out []models.TimeSlot
	path := "/api/availability/doctor/" + url.PathEscape(doctorID) + "/slots"
	if err := c.do(ctx, "doctor_slots", http.MethodGet, path, url.Values{"date": {date}}, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PaymentStatus fetches the current status of a payment.
func (c *Client) PaymentStatus(ctx context.Context, paymentID string) (Payment, error) {
	var out Payment
	path := "/api/payments/" + url.PathEscape(paymentID) + "/status"
	if err := c.do(ctx, "payment_status", http.MethodGet, path, nil, nil, &out); err != nil {
		return Payment{}, err
	}
	if out.ID == "" {
		out.ID = paymentID
	}
	out.Status = PaymentStatus(strings.ToUpper(string(out.Status)))
	return out, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, params url.Values, body, out any) (err error) {
	start := time.Now()
	defer func() {
		outcome := "ok"
		if err != nil {
			outcome = "error"
		}
		c.metrics.ObserveBackend(op, outcome, time.Since(start))
	}()

	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: marshal request: %w", op, err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := bearerFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Operation: op, StatusCode: resp.StatusCode, Message: parseErrorBody(raw)}
		c.logger.Warn().
			Str("operation", op).
			Int("status", resp.StatusCode).
			Str("message", apiErr.Message).
			Msg("backend request rejected")
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(unwrapEnvelope(raw), out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// envelopeKeys are the only keys of a {status, message, data, error} response wrapper.
var envelopeKeys = map[string]bool{"status": true, "message": true, "data": true, "error": true, "success": true}

// unwrapEnvelope strips a response wrapper if the backend uses one.
func unwrapEnvelope(raw []byte) []byte {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return raw
	}
	var env map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return raw
	}
	data, ok := env["data"]
	if !ok {
		return raw
	}
	for k := range env {
		if !envelopeKeys[k] {
			return raw
		}
	}
	return data
}
