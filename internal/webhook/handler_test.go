package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"whatsapp-gateway/internal/store"

	"github.com/gin-gonic/gin"
)

var errTest = errors.New("injected failure")

type fixture struct {
	handler  Handler
	messages *store.MemoryMessageRepo
	calls    *store.MemoryCallRepo
	statuses *store.MemoryStatusRepo
	router   *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{
		messages: store.NewMemoryMessageRepo(),
		calls:    store.NewMemoryCallRepo(),
		statuses: store.NewMemoryStatusRepo(),
	}
	f.handler = Handler{
		VerifyToken: "verify-me",
		Messages:    f.messages,
		Calls:       f.calls,
		Statuses:    f.statuses,
		Now:         func() time.Time { return time.Unix(1700000000, 0) },
	}
	f.router = gin.New()
	f.router.GET("/webhook/", f.handler.Verify)
	f.router.POST("/webhook/", f.handler.Receive)
	return f
}

func (f *fixture) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, target, nil)
	f.router.ServeHTTP(w, r)
	return w
}

func (f *fixture) post(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/webhook/", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	f.router.ServeHTTP(w, r)
	return w
}

func decodeResp(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("response not json: %v (%s)", err, w.Body.String())
	}
	return out
}

func TestVerify_EchoesChallengeVerbatim(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/webhook/?hub.mode=subscribe&hub.verify_token=verify-me&hub.challenge=challenge-42")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "challenge-42" {
		t.Fatalf("challenge must be echoed verbatim, got %q", w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("expected text/plain, got %q", ct)
	}
}

func TestVerify_RejectsBadToken(t *testing.T) {
	f := newFixture(t)

	w := f.get(t, "/webhook/?hub.mode=subscribe&hub.verify_token=wrong&hub.challenge=x")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", w.Code)
	}
	if w.Body.String() != "Verification failed" {
		t.Fatalf("unexpected body %q", w.Body.String())
	}

	w = f.get(t, "/webhook/?hub.mode=unsubscribe&hub.verify_token=verify-me&hub.challenge=x")
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for wrong mode, got %d", w.Code)
	}
}

func TestReceive_InvalidJSON(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, "{not json")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	if resp["status"] != "error" || resp["message"] != "Invalid JSON" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestReceive_WrongObject(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, `{"object":"page","entry":[]}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	if resp["message"] != "Invalid webhook object" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

const messagePayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "entry-1",
    "changes": [{
      "field": "messages",
      "value": {
        "metadata": {"phone_number_id": "pn-1", "display_phone_number": "15550001111"},
        "contacts": [{"wa_id": "123456", "profile": {"name": "Ada Lovelace"}}],
        "messages": [{
          "id": "wamid.A1",
          "from": "123456",
          "timestamp": "1700000000",
          "type": "text",
          "text": {"body": "hello there"}
        }],
        "statuses": [{
          "id": "wamid.OUT1",
          "status": "delivered",
          "recipient_id": "123456",
          "timestamp": "1700000001",
          "conversation": {"id": "conv-1", "origin": {"type": "service"}},
          "pricing": {"billable": true, "pricing_model": "CBP", "category": "service"}
        }]
      }
    }]
  }]
}`

func TestReceive_ProcessesMessagesAndStatusesTogether(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, messagePayload)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResp(t, w)
	if resp["messages_processed"].(float64) != 1 || resp["statuses_processed"].(float64) != 1 {
		t.Fatalf("unexpected counts: %v", resp)
	}

	msgs, _ := f.messages.List(context.Background(), store.MessageFilter{})
	if len(msgs) != 1 {
		t.Fatalf("expected one stored message, got %d", len(msgs))
	}
	m := msgs[0]
	if m.MessageID != "wamid.A1" || m.MessageText != "hello there" || m.MessageType != "text" {
		t.Fatalf("unexpected message: %+v", m)
	}
	if m.ContactName != "Ada Lovelace" || m.WaID != "123456" {
		t.Fatalf("contact resolution failed: %+v", m)
	}
	if m.PhoneNumberID != "pn-1" || m.DisplayPhoneNumber != "15550001111" {
		t.Fatalf("metadata not captured: %+v", m)
	}
	if len(m.RawPayload) == 0 {
		t.Fatalf("raw payload must be retained")
	}
	if m.Processed {
		t.Fatalf("new messages must default to unprocessed")
	}

	sts, _ := f.statuses.List(context.Background(), 0)
	if len(sts) != 1 {
		t.Fatalf("expected one status event, got %d", len(sts))
	}
	s := sts[0]
	if s.MessageID != "wamid.OUT1" || s.Status != store.DeliveryStatusDelivered {
		t.Fatalf("unexpected status: %+v", s)
	}
	if s.ConversationID != "conv-1" || s.ConversationOriginType != "service" {
		t.Fatalf("conversation metadata not captured: %+v", s)
	}
	if !s.IsBillable || s.PricingModel != "CBP" || s.PricingCategory != "service" {
		t.Fatalf("pricing metadata not captured: %+v", s)
	}
}

func TestReceive_RedeliveryUpserts(t *testing.T) {
	f := newFixture(t)

	if w := f.post(t, messagePayload); w.Code != http.StatusOK {
		t.Fatalf("first post: %d", w.Code)
	}
	redelivered := strings.Replace(messagePayload, "hello there", "hello again", 1)
	if w := f.post(t, redelivered); w.Code != http.StatusOK {
		t.Fatalf("second post: %d", w.Code)
	}

	msgs, _ := f.messages.List(context.Background(), store.MessageFilter{})
	if len(msgs) != 1 {
		t.Fatalf("redelivery must not duplicate, got %d rows", len(msgs))
	}
	if msgs[0].MessageText != "hello again" {
		t.Fatalf("row must reflect the second delivery, got %q", msgs[0].MessageText)
	}
}

const callPayload = `{
  "object": "whatsapp_business_account",
  "entry": [{
    "id": "entry-1",
    "changes": [{
      "field": "calls",
      "value": {
        "metadata": {"phone_number_id": "pn-1", "display_phone_number": "15550001111"},
        "contacts": [{"wa_id": "123456", "profile": {"name": "Ada Lovelace"}}],
        "calls": [
          {
            "id": "call-1",
            "from": "123456",
            "to": "15550001111",
            "event": "connect",
            "direction": "USER_INITIATED",
            "timestamp": "1700000000",
            "session": {"sdp": "v=0...", "sdp_type": "offer"}
          },
          {
            "id": "call-1",
            "from": "123456",
            "to": "15550001111",
            "event": "terminate",
            "direction": "USER_INITIATED",
            "status": "COMPLETED",
            "timestamp": "1700000090",
            "start_time": "1700000010",
            "end_time": "1700000090",
            "duration": 80
          }
        ]
      }
    }]
  }]
}`

func TestReceive_CallEventsAreNeverDeduplicated(t *testing.T) {
	f := newFixture(t)

	w := f.post(t, callPayload)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decodeResp(t, w)
	if resp["calls_processed"].(float64) != 2 {
		t.Fatalf("expected two processed calls: %v", resp)
	}

	events, _ := f.calls.List(context.Background(), 0)
	if len(events) != 2 {
		t.Fatalf("connect+terminate must produce two rows, got %d", len(events))
	}
	for _, e := range events {
		if e.CallID != "call-1" {
			t.Fatalf("unexpected call id: %+v", e)
		}
		if e.ContactName != "Ada Lovelace" || e.WaID != "123456" {
			t.Fatalf("contact resolution failed: %+v", e)
		}
		switch e.Event {
		case store.CallEventConnect:
			if e.SessionSDP == "" || e.SessionSDPType != "offer" {
				t.Fatalf("connect row must carry session description: %+v", e)
			}
			if e.Status != "" || e.DurationSeconds != nil {
				t.Fatalf("connect row must not carry terminate fields: %+v", e)
			}
		case store.CallEventTerminate:
			if e.Status != store.CallStatusCompleted {
				t.Fatalf("terminate row must carry status: %+v", e)
			}
			if e.DurationSeconds == nil || *e.DurationSeconds != 80 {
				t.Fatalf("terminate row must carry duration: %+v", e)
			}
		default:
			t.Fatalf("unexpected event %q", e.Event)
		}
	}
}

func TestReceive_BatchIsolation(t *testing.T) {
	f := newFixture(t)

	// Second message has no id and cannot be stored; the first must survive.
	body := `{
	  "object": "whatsapp_business_account",
	  "entry": [{
	    "changes": [{
	      "field": "messages",
	      "value": {
	        "messages": [
	          {"id": "wamid.OK", "from": "1", "type": "text", "text": {"body": "fine"}},
	          {"from": "2", "type": "text", "text": {"body": "broken"}}
	        ]
	      }
	    }]
	  }]
	}`
	w := f.post(t, body)
	if w.Code != http.StatusOK {
		t.Fatalf("batch with one bad record must still return 200, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	if resp["messages_processed"].(float64) != 1 {
		t.Fatalf("count must reflect only successful records: %v", resp)
	}
	msgs, _ := f.messages.List(context.Background(), store.MessageFilter{})
	if len(msgs) != 1 || msgs[0].MessageID != "wamid.OK" {
		t.Fatalf("well-formed sibling must be stored: %+v", msgs)
	}
}

func TestReceive_RepoFailureIsIsolated(t *testing.T) {
	f := newFixture(t)
	f.messages.FailNext(errTest)

	w := f.post(t, messagePayload)
	if w.Code != http.StatusOK {
		t.Fatalf("repo failure on one record must not fail the batch, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	if resp["messages_processed"].(float64) != 0 {
		t.Fatalf("failed record must not be counted: %v", resp)
	}
	// The status in the same change must still have been processed.
	if resp["statuses_processed"].(float64) != 1 {
		t.Fatalf("sibling status must still be processed: %v", resp)
	}
}

func TestReceive_UnknownFieldIgnored(t *testing.T) {
	f := newFixture(t)

	body := `{
	  "object": "whatsapp_business_account",
	  "entry": [{"changes": [{"field": "account_alerts", "value": {"alert": "x"}}]}]
	}`
	w := f.post(t, body)
	if w.Code != http.StatusOK {
		t.Fatalf("unknown fields must be tolerated, got %d", w.Code)
	}
	resp := decodeResp(t, w)
	if resp["messages_processed"].(float64) != 0 || resp["calls_processed"].(float64) != 0 {
		t.Fatalf("nothing should be processed: %v", resp)
	}
	if _, ok := resp["message_ids"]; ok {
		t.Fatalf("id lists must be omitted when empty")
	}
}
