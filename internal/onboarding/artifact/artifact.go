// Package artifact builds the files handed to an operator once a unit holds
// its production credential.
package artifact

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/smallbiznis/egsbridge/internal/certificate"
	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

const (
	CertificateFile = "cert.pem"
	PrivateKeyFile  = "ec-secp256k1-priv-key.pem"
)

// BaseName is "{common name}_{environment}", shared by the info file and
// the bundle.
func BaseName(info certificate.Info) string {
	return fmt.Sprintf("%s_%s", info.CsrCommonName, info.EnvironmentType)
}

func BundleName(info certificate.Info) string {
	return BaseName(info) + ".zip"
}

// Files returns the certificate, private key and info files. The caller
// passes the encoded certificate blob written back to the accounting
// system; info is redacted before it is rendered.
func Files(info certificate.Info, encoded string) ([]domain.ArtifactFile, error) {
	if info.PCSIDBinaryToken == "" {
		return nil, domain.ErrMissingProductionCredential
	}
	pem, err := base64.StdEncoding.DecodeString(info.PCSIDBinaryToken)
	if err != nil {
		return nil, fmt.Errorf("decode production token: %w", err)
	}
	return []domain.ArtifactFile{
		{Name: CertificateFile, Content: pem},
		{Name: PrivateKeyFile, Content: []byte(info.PrivateKeyPEM)},
		{Name: BaseName(info) + ".txt", Content: []byte(InfoText(info.Redacted(), encoded))},
	}, nil
}

// InfoText renders the human readable info file.
func InfoText(info certificate.Info, encoded string) string {
	var b strings.Builder
	b.WriteString("Manager Certificate Info:\n")
	b.WriteString(encoded)
	b.WriteString("\n\nOnboarding Device Info:\n")
	for _, f := range info.Fields() {
		b.WriteString(f.Name)
		b.WriteString(":\n")
		b.WriteString(f.Value)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Bundle zips files in order.
func Bundle(files []domain.ArtifactFile) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, f := range files {
		w, err := zw.Create(f.Name)
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(f.Content); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
