package qrcode

import (
	"encoding/base64"
	"errors"
	"net/url"
	"strings"

	skipqrcode "github.com/skip2/go-qrcode"
)

var (
	ErrEmptyContent             = errors.New("content cannot be empty")
	ErrNotProvisioningURI       = errors.New("content is not an otpauth provisioning URI")
	ErrorFailedToGenerateQRCode = errors.New("failed to generate QR code")
)

// defaultSize is the size in pixels used when no size is specified
const defaultSize = 256

const dataURIPrefix = "data:image/png;base64,"

// Generate creates a QR code image in PNG format with the given content.
func Generate(content string, size int) ([]byte, error) {
	if strings.TrimSpace(content) == "" {
		return nil, ErrEmptyContent
	}
	if size <= 0 {
		size = defaultSize
	}
	png, err := skipqrcode.Encode(content, skipqrcode.Medium, size)
	if err != nil {
		return nil, errors.Join(ErrorFailedToGenerateQRCode, err)
	}
	return png, nil
}

// GenerateBase64Image returns the QR code as a data URI for an <img> tag.
//
//	<img src="{{.QRCode}}">
func GenerateBase64Image(content string, size int) (string, error) {
	png, err := Generate(content, size)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// ProvisioningPNG renders an otpauth:// URI, as built by Service.ProvisioningURI,
// so authenticator apps can scan it.
func ProvisioningPNG(uri string, size int) ([]byte, error) {
	if err := checkProvisioningURI(uri); err != nil {
		return nil, err
	}
	return Generate(uri, size)
}

// ProvisioningDataURI is ProvisioningPNG encoded as a data URI.
func ProvisioningDataURI(uri string, size int) (string, error) {
	if err := checkProvisioningURI(uri); err != nil {
		return "", err
	}
	return GenerateBase64Image(uri, size)
}

func checkProvisioningURI(uri string) error {
	if strings.TrimSpace(uri) == "" {
		return ErrEmptyContent
	}
	u, err := url.Parse(uri)
	if err != nil {
		return errors.Join(ErrNotProvisioningURI, err)
	}
	if u.Scheme != "otpauth" || u.Host != "totp" || u.Query().Get("secret") == "" {
		return ErrNotProvisioningURI
	}
	return nil
}
