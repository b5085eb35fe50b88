// Package qrcode renders QR codes as PNG bytes or data URIs using
// github.com/skip2/go-qrcode.
//
// ProvisioningPNG and ProvisioningDataURI accept only otpauth://totp URIs
// carrying a secret, which is what authenticator apps scan during enrollment:
//
//	uri, err := svc.ProvisioningURI("alice@example.com", secret)
//	if err != nil {
//		return err
//	}
//	img, err := qrcode.ProvisioningDataURI(uri, 256)
//
// Generate and GenerateBase64Image encode arbitrary content. Errors wrap
// ErrEmptyContent, ErrNotProvisioningURI or ErrorFailedToGenerateQRCode.
package qrcode
