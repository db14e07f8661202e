package main

import (
	"encoding/base64"
	"fmt"

	"github.com/skip2/go-qrcode"
	"github.com/urfave/cli/v2"
)

// qrSize is the PNG edge length in pixels. Full-size transactions need
// version 35+ codes, which are unreadable below roughly 600px.
const qrSize = 768

func qrFlag() cli.Flag {
	return &cli.StringFlag{
		Name:  "qr",
		Usage: "Also write the Base64 transaction as a QR code PNG to `FILE`",
	}
}

// writeQRCode encodes raw as Base64 and writes it to path as a PNG QR code.
func writeQRCode(path string, raw []byte) error {
	qr, err := qrcode.New(base64.StdEncoding.EncodeToString(raw), qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to create QR code: %w", err)
	}
	if err := qr.WriteFile(qrSize, path); err != nil {
		return fmt.Errorf("failed to write QR code: %w", err)
	}
	return nil
}
