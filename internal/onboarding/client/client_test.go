package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/smallbiznis/egsbridge/internal/clock"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

var testCred = domain.Credentials{BinarySecurityToken: "VE9LRU4=", Secret: "s3cret"}

func newTestClient(sleeper clock.Sleeper) *Client {
	return New(Params{Log: zap.NewNop(), Sleeper: sleeper})
}

func TestCheckComplianceRetriesTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	sleeper := &clock.RecordingSleeper{}
	result := newTestClient(sleeper).CheckCompliance(context.Background(), url, testCred, domain.ComplianceRequest{InvoiceHash: "h"})

	assert.Nil(t, result.Response)
	assert.Equal(t, 3, result.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, sleeper.Delays())

	var authErr *domain.AuthorityError
	require.ErrorAs(t, result.Err, &authErr)
	assert.Equal(t, domain.FailureTransport, authErr.Kind)
	assert.ErrorIs(t, result.Err, domain.ErrAuthority)
}

func TestCheckComplianceSerializationIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer srv.Close()

	sleeper := &clock.RecordingSleeper{}
	result := newTestClient(sleeper).CheckCompliance(context.Background(), srv.URL, testCred, domain.ComplianceRequest{})

	assert.Nil(t, result.Response)
	assert.Equal(t, 1, result.Attempts)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, sleeper.Delays())

	var authErr *domain.AuthorityError
	require.ErrorAs(t, result.Err, &authErr)
	assert.Equal(t, domain.FailureSerialization, authErr.Kind)
}

func TestCheckComplianceAuthenticationIsNotRetried(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	sleeper := &clock.RecordingSleeper{}
	result := newTestClient(sleeper).CheckCompliance(context.Background(), srv.URL, testCred, domain.ComplianceRequest{})

	assert.Nil(t, result.Response)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	assert.Empty(t, sleeper.Delays())

	var authErr *domain.AuthorityError
	require.ErrorAs(t, result.Err, &authErr)
	assert.Equal(t, domain.FailureAuthentication, authErr.Kind)
	assert.Equal(t, http.StatusUnauthorized, authErr.Status)
}

func TestCheckComplianceRecoversAfterServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"clearanceStatus": "CLEARED"})
	}))
	defer srv.Close()

	sleeper := &clock.RecordingSleeper{}
	result := newTestClient(sleeper).CheckCompliance(context.Background(), srv.URL, testCred, domain.ComplianceRequest{})

	require.NoError(t, result.Err)
	require.NotNil(t, result.Response)
	assert.Equal(t, 2, result.Attempts)
	assert.Equal(t, []time.Duration{2 * time.Second}, sleeper.Delays())
	assert.True(t, domain.FlowClearance.Accepts(result.Response))
}

func TestCheckComplianceSendsHeadersAndBody(t *testing.T) {
	var (
		gotHeader http.Header
		gotBody   domain.ComplianceRequest
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Clone()
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusAccepted)
		_, _ = w.Write([]byte(`{"reportingStatus":"REPORTED","validationResults":{"status":"WARNING"}}`))
	}))
	defer srv.Close()

	payload := domain.ComplianceRequest{InvoiceHash: "aGFzaA==", UUID: "u-1", Invoice: "PGludi8+"}
	result := newTestClient(&clock.RecordingSleeper{}).CheckCompliance(context.Background(), srv.URL, testCred, payload)

	require.NoError(t, result.Err)
	assert.True(t, domain.FlowReporting.Accepts(result.Response))
	assert.Equal(t, payload, gotBody)
	assert.Equal(t, "V2", gotHeader.Get("Accept-Version"))
	assert.Equal(t, "en", gotHeader.Get("Accept-Language"))
	assert.Equal(t, "application/json", gotHeader.Get("Accept"))
	expected := "Basic " + base64.StdEncoding.EncodeToString([]byte("VE9LRU4=:s3cret"))
	assert.Equal(t, expected, gotHeader.Get("Authorization"))
}

func TestCheckComplianceRejectedVerdictCarriesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"clearanceStatus":"NOT_CLEARED","validationResults":{"status":"ERROR","errorMessages":[{"code":"BR-KSA-01","message":"bad"}]}}`))
	}))
	defer srv.Close()

	result := newTestClient(&clock.RecordingSleeper{}).CheckCompliance(context.Background(), srv.URL, testCred, domain.ComplianceRequest{})

	require.NoError(t, result.Err)
	require.NotNil(t, result.Response)
	assert.False(t, domain.FlowClearance.Accepts(result.Response))
}

func TestCheckComplianceStopsWhenContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sleeper := &clock.RecordingSleeper{}
	result := newTestClient(sleeper).CheckCompliance(ctx, url, testCred, domain.ComplianceRequest{})

	assert.Nil(t, result.Response)
	assert.Equal(t, 1, result.Attempts)
	assert.Empty(t, sleeper.Delays())

	var authErr *domain.AuthorityError
	require.ErrorAs(t, result.Err, &authErr)
	assert.Equal(t, domain.FailureCancelled, authErr.Kind)
}

func TestIssueComplianceCSID(t *testing.T) {
	var (
		gotOTP  string
		gotBody map[string]string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOTP = r.Header.Get("OTP")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"requestID":1234567890123,"dispositionMessage":"ISSUED","binarySecurityToken":"VE9LRU4=","secret":"s3cret"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(&clock.RecordingSleeper{}).IssueComplianceCSID(context.Background(), srv.URL, "123345", "LS0tQ1NS")
	require.NoError(t, err)
	assert.Equal(t, domain.RequestID("1234567890123"), resp.RequestID)
	assert.Equal(t, "VE9LRU4=", resp.BinarySecurityToken)
	assert.Equal(t, "s3cret", resp.Secret)
	assert.Equal(t, "123345", gotOTP)
	assert.Equal(t, "LS0tQ1NS", gotBody["csr"])
}

func TestIssueComplianceCSIDRequiresOTP(t *testing.T) {
	_, err := newTestClient(&clock.RecordingSleeper{}).IssueComplianceCSID(context.Background(), "http://unused", " ", "csr")
	assert.ErrorIs(t, err, domain.ErrMissingOTP)
}

func TestIssueProductionCSIDRejected(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"code":"Invalid-Request","message":"compliance steps not completed"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(&clock.RecordingSleeper{}).IssueProductionCSID(context.Background(), srv.URL, testCred, "42")

	var authErr *domain.AuthorityError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, domain.FailureRejected, authErr.Kind)
	assert.Equal(t, http.StatusBadRequest, authErr.Status)
	assert.Equal(t, "compliance steps not completed", authErr.Reason)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestIssueProductionCSIDSendsNumericRequestID(t *testing.T) {
	var raw map[string]json.RawMessage
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&raw)
		_, _ = w.Write([]byte(`{"requestID":"99","binarySecurityToken":"UENTSUQ=","secret":"p"}`))
	}))
	defer srv.Close()

	resp, err := newTestClient(&clock.RecordingSleeper{}).IssueProductionCSID(context.Background(), srv.URL, testCred, "1234")
	require.NoError(t, err)
	assert.Equal(t, "UENTSUQ=", resp.BinarySecurityToken)
	assert.Equal(t, "1234", string(raw["compliance_request_id"]))
}

func TestIssueProductionCSIDRequiresCredential(t *testing.T) {
	_, err := newTestClient(&clock.RecordingSleeper{}).IssueProductionCSID(context.Background(), "http://unused", domain.Credentials{}, "1")
	assert.True(t, errors.Is(err, domain.ErrMissingComplianceCredential))
}

func TestExtractReason(t *testing.T) {
	assert.Equal(t, "", extractReason(nil))
	assert.Equal(t, "a; b", extractReason([]byte(`{"message":"a","errors":[{"message":"b"}]}`)))
	assert.Equal(t, "plain text", extractReason([]byte("plain text")))
}

func TestRetryPolicyDoublesWithoutJitter(t *testing.T) {
	c := New(Params{Log: zap.NewNop(), Config: Config{BaseDelay: 500 * time.Millisecond}})
	policy := c.retryPolicy()
	assert.Equal(t, time.Second, policy.NextBackOff())
	assert.Equal(t, 2*time.Second, policy.NextBackOff())
	assert.Equal(t, 4*time.Second, policy.NextBackOff())

	again := c.retryPolicy()
	assert.Equal(t, time.Second, again.NextBackOff())
}

func TestTruncateKeepsRunesWhole(t *testing.T) {
	short := "الفاتورة غير صالحة"
	assert.Equal(t, short, truncate(short))

	long := strings.Repeat("a", maxReasonLength-1) + strings.Repeat("ف", 10)
	out := truncate(long)
	assert.True(t, utf8.ValidString(out))
	assert.True(t, strings.HasPrefix(out, strings.Repeat("a", maxReasonLength-1)+"..."))
	assert.Contains(t, out, "(20 more bytes)")
}
