package sso

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/config"
)

const idpMetadataTemplate = `<?xml version="1.0"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"
    xmlns:ds="http://www.w3.org/2000/09/xmldsig#"
    entityID="https://idp.example.com/saml">
  <md:IDPSSODescriptor protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <md:KeyDescriptor use="signing">
      <ds:KeyInfo>
        <ds:X509Data>
          <ds:X509Certificate>%s</ds:X509Certificate>
        </ds:X509Data>
      </ds:KeyInfo>
    </md:KeyDescriptor>
    <md:SingleSignOnService Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-Redirect"
        Location="https://idp.example.com/saml/sso"/>
  </md:IDPSSODescriptor>
</md:EntityDescriptor>`

func selfSignedCert(t *testing.T) string {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "idp.example.com"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(24 * time.Hour),
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	require.NoError(t, err)
	return base64.StdEncoding.EncodeToString(der)
}

type metadataServer struct {
	server *httptest.Server
	hits   int32
}

func newMetadataServer(t *testing.T, status int, body string) *metadataServer {
	t.Helper()
	ms := &metadataServer{}
	ms.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&ms.hits, 1)
		w.Header().Set("Content-Type", "application/samlmetadata+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(ms.server.Close)
	return ms
}

func samlConfig(metadataURL string) config.SSOConfig {
	return config.SSOConfig{
		Enabled:             true,
		SAMLSPEntityID:      "https://appr.example.com/saml",
		SAMLSPACSURL:        "https://appr.example.com/api/v1/auth/saml/acs",
		SAMLIdPMetadataURL:  metadataURL,
		SAMLMetadataRefresh: time.Hour,
	}
}

func TestSAMLService_Metadata(t *testing.T) {
	cfg := samlConfig("")
	cfg.SAMLSPACSURL = "https://appr.example.com/acs?a=1&b=2"
	svc := NewSAMLService(cfg, &stubLogins{})

	xml := string(svc.Metadata())
	assert.Contains(t, xml, `entityID="https://appr.example.com/saml"`)
	assert.Contains(t, xml, `Location="https://appr.example.com/acs?a=1&amp;b=2"`)
	assert.Contains(t, xml, `Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"`)
	assert.Contains(t, xml, `WantAssertionsSigned="true"`)
}

func TestSAMLService_ConsumeAssertion_Guards(t *testing.T) {
	ctx := context.Background()

	t.Run("sso disabled", func(t *testing.T) {
		cfg := samlConfig("https://idp.example.com/metadata")
		cfg.Enabled = false
		_, err := NewSAMLService(cfg, &stubLogins{}).ConsumeAssertion(ctx, "x", uuid.New())
		require.Error(t, err)
		assert.Equal(t, MsgSSODisabled, err.Error())
	})

	t.Run("idp not configured", func(t *testing.T) {
		_, err := NewSAMLService(samlConfig(""), &stubLogins{}).ConsumeAssertion(ctx, "x", uuid.New())
		require.Error(t, err)
		assert.Equal(t, apperrors.KindUnavailable, apperrors.KindOf(err))
		assert.Equal(t, MsgSAMLNotConfigured, err.Error())
	})

	t.Run("empty response", func(t *testing.T) {
		_, err := NewSAMLService(samlConfig("https://idp.example.com/metadata"), &stubLogins{}).ConsumeAssertion(ctx, " ", uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.KindBadRequest))
	})

	t.Run("encrypted assertion", func(t *testing.T) {
		response := base64.StdEncoding.EncodeToString([]byte(
			`<samlp:Response xmlns:samlp="urn:oasis:names:tc:SAML:2.0:protocol"><saml:EncryptedAssertion xmlns:saml="urn:oasis:names:tc:SAML:2.0:assertion"/></samlp:Response>`))
		_, err := NewSAMLService(samlConfig("https://idp.example.com/metadata"), &stubLogins{}).ConsumeAssertion(ctx, response, uuid.New())
		require.Error(t, err)
		assert.Equal(t, apperrors.KindNotImplemented, apperrors.KindOf(err))
		assert.Equal(t, MsgSAMLEncrypted, err.Error())
	})
}

func TestSAMLService_ConsumeAssertion_Metadata(t *testing.T) {
	ctx := context.Background()
	garbage := base64.StdEncoding.EncodeToString([]byte("<not-a-response/>"))

	t.Run("rejects unsigned response and caches metadata", func(t *testing.T) {
		ms := newMetadataServer(t, http.StatusOK, fmt.Sprintf(idpMetadataTemplate, selfSignedCert(t)))
		logins := &stubLogins{}
		svc := NewSAMLService(samlConfig(ms.server.URL), logins).WithHTTPClient(ms.server.Client())

		for i := 0; i < 2; i++ {
			_, err := svc.ConsumeAssertion(ctx, garbage, uuid.New())
			require.Error(t, err)
			assert.Equal(t, apperrors.KindUnauthenticated, apperrors.KindOf(err))
			assert.Equal(t, MsgSAMLInvalid, err.Error())
		}
		assert.Equal(t, int32(1), atomic.LoadInt32(&ms.hits))
		assert.Empty(t, logins.identities)
	})

	t.Run("metadata endpoint failure", func(t *testing.T) {
		ms := newMetadataServer(t, http.StatusInternalServerError, "")
		svc := NewSAMLService(samlConfig(ms.server.URL), &stubLogins{}).WithHTTPClient(ms.server.Client())

		_, err := svc.ConsumeAssertion(ctx, garbage, uuid.New())
		appErr, ok := apperrors.As(err)
		require.True(t, ok)
		assert.Equal(t, apperrors.KindUpstream, appErr.Kind)
		assert.Equal(t, MsgSAMLMetadataFailure, appErr.Detail)
	})

	t.Run("metadata without signing certificate", func(t *testing.T) {
		ms := newMetadataServer(t, http.StatusOK, fmt.Sprintf(idpMetadataTemplate, ""))
		svc := NewSAMLService(samlConfig(ms.server.URL), &stubLogins{}).WithHTTPClient(ms.server.Client())

		_, err := svc.ConsumeAssertion(ctx, garbage, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.KindUpstream))
	})

	t.Run("not idp metadata", func(t *testing.T) {
		ms := newMetadataServer(t, http.StatusOK, `<html><body>login</body></html>`)
		svc := NewSAMLService(samlConfig(ms.server.URL), &stubLogins{}).WithHTTPClient(ms.server.Client())

		_, err := svc.ConsumeAssertion(ctx, garbage, uuid.New())
		assert.True(t, apperrors.Is(err, apperrors.KindUpstream))
	})
}

func TestSAMLService_Identity(t *testing.T) {
	svc := NewSAMLService(samlConfig(""), &stubLogins{})
	tenantID := uuid.New()

	t.Run("email attribute", func(t *testing.T) {
		id, err := svc.identity("opaque-123", map[string][]string{
			"mail":        {"jane@example.com"},
			"displayName": {"Jane Doe"},
		}, tenantID)
		require.NoError(t, err)
		assert.Equal(t, auth.SSOIdentity{
			TenantID:    tenantID,
			Email:       "jane@example.com",
			DisplayName: "Jane Doe",
			ExternalID:  "opaque-123",
			Provider:    auth.ProviderSAML,
		}, id)
	})

	t.Run("email shaped name id", func(t *testing.T) {
		id, err := svc.identity("bob@example.com", nil, tenantID)
		require.NoError(t, err)
		assert.Equal(t, "bob@example.com", id.Email)
		assert.Equal(t, "bob@example.com", id.DisplayName)
		assert.Equal(t, "bob@example.com", id.ExternalID)
	})

	t.Run("claims uri attribute", func(t *testing.T) {
		id, err := svc.identity("", map[string][]string{
			"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress": {"", "carol@example.com"},
		}, tenantID)
		require.NoError(t, err)
		assert.Equal(t, "carol@example.com", id.Email)
		assert.Equal(t, "carol@example.com", id.ExternalID)
	})

	t.Run("no email", func(t *testing.T) {
		_, err := svc.identity("opaque-123", map[string][]string{"displayName": {"Nobody"}}, tenantID)
		require.Error(t, err)
		assert.Equal(t, apperrors.KindBadRequest, apperrors.KindOf(err))
		assert.Equal(t, MsgSAMLMissingEmail, err.Error())
	})
}
