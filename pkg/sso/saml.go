package sso

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	saml2 "github.com/russellhaering/gosaml2"
	"github.com/russellhaering/gosaml2/types"
	dsig "github.com/russellhaering/goxmldsig"

	"github.com/platinummonkey/appr/pkg/apperrors"
	"github.com/platinummonkey/appr/pkg/auth"
	"github.com/platinummonkey/appr/pkg/config"
	"github.com/platinummonkey/appr/pkg/observability"
)

const maxMetadataBytes = 1 << 20

// Attribute names checked, in order, for the user's email and display name
var (
	emailAttributes = []string{
		"email",
		"mail",
		"emailaddress",
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/emailaddress",
		"urn:oid:0.9.2342.19200300.100.1.3",
	}
	nameAttributes = []string{
		"displayName",
		"name",
		"http://schemas.xmlsoap.org/ws/2005/05/identity/claims/name",
		"urn:oid:2.16.840.1.113730.3.1.241",
	}
)

const spMetadataTemplate = `<?xml version="1.0"?>
<md:EntityDescriptor xmlns:md="urn:oasis:names:tc:SAML:2.0:metadata"
    entityID="%s">
  <md:SPSSODescriptor
      AuthnRequestsSigned="false"
      WantAssertionsSigned="true"
      protocolSupportEnumeration="urn:oasis:names:tc:SAML:2.0:protocol">
    <md:AssertionConsumerService
        Binding="urn:oasis:names:tc:SAML:2.0:bindings:HTTP-POST"
        Location="%s"
        index="1"/>
  </md:SPSSODescriptor>
</md:EntityDescriptor>`

// SAMLService validates IdP assertions posted to the ACS endpoint
type SAMLService struct {
	cfg      config.SSOConfig
	logins   LoginCompleter
	client   *http.Client
	metadata *expirable.LRU[string, *types.EntityDescriptor]
	validate *validator.Validate
}

// NewSAMLService creates a SAML service; IdP metadata is cached for
// cfg.SAMLMetadataRefresh.
func NewSAMLService(cfg config.SSOConfig, logins LoginCompleter) *SAMLService {
	refresh := cfg.SAMLMetadataRefresh
	if refresh <= 0 {
		refresh = time.Hour
	}
	return &SAMLService{
		cfg:      cfg,
		logins:   logins,
		client:   &http.Client{Timeout: 10 * time.Second},
		metadata: expirable.NewLRU[string, *types.EntityDescriptor](4, nil, refresh),
		validate: validator.New(),
	}
}

// WithHTTPClient overrides the client used to fetch IdP metadata
func (s *SAMLService) WithHTTPClient(client *http.Client) *SAMLService {
	s.client = client
	return s
}

// Metadata returns the SP metadata document
func (s *SAMLService) Metadata() []byte {
	return []byte(fmt.Sprintf(spMetadataTemplate, escapeXML(s.cfg.SAMLSPEntityID), escapeXML(s.cfg.SAMLSPACSURL)))
}

// ConsumeAssertion validates a base64 SAMLResponse and completes the login
// for tenantID.
func (s *SAMLService) ConsumeAssertion(ctx context.Context, samlResponse string, tenantID uuid.UUID) (*auth.TokenResponse, error) {
	if !s.cfg.Enabled {
		return nil, apperrors.Unavailable(MsgSSODisabled)
	}
	if s.cfg.SAMLIdPMetadataURL == "" {
		return nil, apperrors.Unavailable(MsgSAMLNotConfigured)
	}
	if strings.TrimSpace(samlResponse) == "" {
		return nil, apperrors.BadRequest("SAMLResponse is required")
	}
	if hasEncryptedAssertion(samlResponse) {
		return nil, apperrors.NotImplemented(MsgSAMLEncrypted)
	}

	logger := observability.FromContext(ctx)

	metadata, err := s.idpMetadata(ctx)
	if err != nil {
		return nil, apperrors.Upstream(MsgSAMLMetadataFailure, err)
	}
	sp, err := s.serviceProvider(metadata)
	if err != nil {
		return nil, apperrors.Upstream(MsgSAMLMetadataFailure, err)
	}

	info, err := sp.RetrieveAssertionInfo(samlResponse)
	if err != nil {
		logger.WithError(err).Warn("saml assertion rejected")
		return nil, apperrors.Unauthenticated(MsgSAMLInvalid)
	}
	if info.WarningInfo != nil {
		if info.WarningInfo.InvalidTime {
			return nil, apperrors.Unauthenticated("SAML assertion is expired or not yet valid")
		}
		if info.WarningInfo.NotInAudience {
			return nil, apperrors.Unauthenticated("SAML assertion audience mismatch")
		}
	}

	attributes := make(map[string][]string, len(info.Values))
	for _, attr := range info.Values {
		for _, v := range attr.Values {
			attributes[attr.Name] = append(attributes[attr.Name], v.Value)
		}
	}

	id, err := s.identity(info.NameID, attributes, tenantID)
	if err != nil {
		return nil, err
	}
	return s.logins.CompleteSSOLogin(ctx, id)
}

// hasEncryptedAssertion reports whether a decodable response carries an
// EncryptedAssertion. No SP decryption key is configured for those.
func hasEncryptedAssertion(samlResponse string) bool {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(samlResponse))
	if err != nil {
		return false
	}
	return strings.Contains(string(raw), "EncryptedAssertion")
}

// identity maps the NameID and attributes to an SSO identity. The email comes
// from a known attribute or, failing that, an email-shaped NameID.
func (s *SAMLService) identity(nameID string, attributes map[string][]string, tenantID uuid.UUID) (auth.SSOIdentity, error) {
	nameID = strings.TrimSpace(nameID)
	email := firstAttribute(attributes, emailAttributes)
	if email == "" && s.validate.Var(nameID, "required,email") == nil {
		email = nameID
	}
	if email == "" {
		return auth.SSOIdentity{}, apperrors.BadRequest(MsgSAMLMissingEmail)
	}

	externalID := nameID
	if externalID == "" {
		externalID = email
	}
	displayName := firstAttribute(attributes, nameAttributes)
	if displayName == "" {
		displayName = email
	}

	return auth.SSOIdentity{
		TenantID:    tenantID,
		Email:       email,
		DisplayName: displayName,
		ExternalID:  externalID,
		Provider:    auth.ProviderSAML,
	}, nil
}

func firstAttribute(attributes map[string][]string, names []string) string {
	for _, name := range names {
		for _, v := range attributes[name] {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func (s *SAMLService) idpMetadata(ctx context.Context) (*types.EntityDescriptor, error) {
	url := s.cfg.SAMLIdPMetadataURL
	if md, ok := s.metadata.Get(url); ok {
		return md, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid metadata URL: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch metadata: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("metadata endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxMetadataBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata: %w", err)
	}

	md := &types.EntityDescriptor{}
	if err := xml.Unmarshal(body, md); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}
	if md.IDPSSODescriptor == nil {
		return nil, fmt.Errorf("metadata has no IDPSSODescriptor")
	}

	s.metadata.Add(url, md)
	observability.FromContext(ctx).WithField("entity_id", md.EntityID).Info("loaded saml idp metadata")
	return md, nil
}

func (s *SAMLService) serviceProvider(md *types.EntityDescriptor) (*saml2.SAMLServiceProvider, error) {
	certStore := dsig.MemoryX509CertificateStore{Roots: []*x509.Certificate{}}
	for _, kd := range md.IDPSSODescriptor.KeyDescriptors {
		if kd.Use != "" && kd.Use != "signing" {
			continue
		}
		for _, xcert := range kd.KeyInfo.X509Data.X509Certificates {
			data := strings.Join(strings.Fields(xcert.Data), "")
			if data == "" {
				continue
			}
			der, err := base64.StdEncoding.DecodeString(data)
			if err != nil {
				return nil, fmt.Errorf("invalid certificate encoding: %w", err)
			}
			cert, err := x509.ParseCertificate(der)
			if err != nil {
				return nil, fmt.Errorf("failed to parse certificate: %w", err)
			}
			certStore.Roots = append(certStore.Roots, cert)
		}
	}
	if len(certStore.Roots) == 0 {
		return nil, fmt.Errorf("metadata has no signing certificate")
	}

	var ssoURL string
	for _, svc := range md.IDPSSODescriptor.SingleSignOnServices {
		if svc.Location != "" {
			ssoURL = svc.Location
			break
		}
	}

	return &saml2.SAMLServiceProvider{
		IdentityProviderSSOURL:      ssoURL,
		IdentityProviderIssuer:      md.EntityID,
		ServiceProviderIssuer:       s.cfg.SAMLSPEntityID,
		AssertionConsumerServiceURL: s.cfg.SAMLSPACSURL,
		AudienceURI:                 s.cfg.SAMLSPEntityID,
		IDPCertificateStore:         &certStore,
	}, nil
}

func escapeXML(s string) string {
	var b strings.Builder
	_ = xml.EscapeText(&b, []byte(s))
	return b.String()
}
