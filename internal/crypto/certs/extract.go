package certs

import (
	"crypto/sha256"
	"crypto/x509"
	"encoding/asn1"
	"encoding/hex"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"
)

// ARRL Logbook of The World certificate attributes. The callsign usually
// sits in the subject; the QSO window and DXCC entity are extensions.
var (
	oidCallsign     = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 12348, 1, 1}
	oidQSOFirstDate = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 12348, 1, 2}
	oidQSOLastDate  = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 12348, 1, 3}
	oidDXCCEntity   = asn1.ObjectIdentifier{1, 3, 6, 1, 4, 1, 12348, 1, 4}
)

var (
	// Amateur radio callsign: optional prefix digit, letters, a separating
	// digit and a letter suffix, with optional /P style portable markers.
	reCallsign = regexp.MustCompile(`\b[A-Z0-9]{0,3}[0-9][A-Z]{1,4}(?:/[A-Z0-9]{1,4})?\b`)
	reDate     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

type ExtractedInfo struct {
	Callsign     string
	DXCCEntity   string
	QSOFirstDate string
	QSOLastDate  string
	CommonName   string
	RawSubject   string
	Issuer       string
	SerialNumber string
	ValidFrom    string
	ValidUntil   string
	Fingerprint  string
}

// Extract summarizes cert for display. Missing LoTW attributes leave their
// fields empty; the callsign falls back to the first callsign-shaped token
// of the subject common name.
func Extract(cert *x509.Certificate) ExtractedInfo {
	sum := sha256.Sum256(cert.Raw)
	info := ExtractedInfo{
		CommonName:  normalizeSpace(cert.Subject.CommonName),
		RawSubject:  cert.Subject.String(),
		Issuer:      cert.Issuer.CommonName,
		ValidFrom:   cert.NotBefore.UTC().Format(time.RFC3339),
		ValidUntil:  cert.NotAfter.UTC().Format(time.RFC3339),
		Fingerprint: hex.EncodeToString(sum[:]),
	}
	if cert.SerialNumber != nil {
		info.SerialNumber = cert.SerialNumber.Text(16)
	}

	for _, name := range cert.Subject.Names {
		val, ok := name.Value.(string)
		if !ok {
			continue
		}
		if name.Type.Equal(oidCallsign) {
			info.Callsign = strings.ToUpper(normalizeSpace(val))
		}
	}

	for _, ext := range cert.Extensions {
		switch {
		case ext.Id.Equal(oidCallsign):
			if info.Callsign == "" {
				info.Callsign = strings.ToUpper(extensionString(ext.Value))
			}
		case ext.Id.Equal(oidQSOFirstDate):
			info.QSOFirstDate = normalizeDate(extensionString(ext.Value))
		case ext.Id.Equal(oidQSOLastDate):
			info.QSOLastDate = normalizeDate(extensionString(ext.Value))
		case ext.Id.Equal(oidDXCCEntity):
			info.DXCCEntity = extensionString(ext.Value)
		}
	}

	// Fallback from CN.
	if info.Callsign == "" {
		info.Callsign = reCallsign.FindString(strings.ToUpper(info.CommonName))
	}
	return info
}

// extensionString reads an extension value that is either a DER string
// type or, as some issuers write it, the bare text.
func extensionString(value []byte) string {
	var raw asn1.RawValue
	if rest, err := asn1.Unmarshal(value, &raw); err == nil && len(rest) == 0 && raw.Class == asn1.ClassUniversal {
		switch raw.Tag {
		case asn1.TagUTF8String, asn1.TagPrintableString, asn1.TagIA5String, asn1.TagT61String:
			return normalizeSpace(string(raw.Bytes))
		case asn1.TagInteger:
			var n int64
			if _, err := asn1.Unmarshal(value, &n); err == nil {
				return strconv.FormatInt(n, 10)
			}
		}
	}
	if utf8.Valid(value) {
		return normalizeSpace(string(value))
	}
	return ""
}

func normalizeDate(s string) string {
	if reDate.MatchString(s) {
		return s
	}
	// Some certificates carry compact YYYYMMDD dates.
	if t, err := time.Parse("20060102", s); err == nil {
		return t.Format("2006-01-02")
	}
	return s
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
