package model

// Arguments carries the inputs of every call. P12 travels as standard
// base64 in JSON.
type Arguments struct {
	Data     string `json:"data,omitempty"`
	P12      []byte `json:"p12,omitempty"`
	Password string `json:"password"`
}

// Result is the envelope returned for every implemented call. Exactly one
// payload field is set when OK is true; Error is set otherwise.
type Result struct {
	OK              bool             `json:"ok"`
	SignatureB64    string           `json:"signature_b64,omitempty"`
	Certificate     string           `json:"certificate,omitempty"`
	CertificateInfo *CertificateInfo `json:"certificate_info,omitempty"`
	ChainP7B        string           `json:"chain_p7b,omitempty"`
	Error           string           `json:"error,omitempty"`
}

func Failure(msg string) Result {
	return Result{OK: false, Error: msg}
}

type CertificateInfo struct {
	Callsign     string `json:"callsign,omitempty"`
	DXCCEntity   string `json:"dxcc_entity,omitempty"`
	QSOFirstDate string `json:"qso_first_date,omitempty"`
	QSOLastDate  string `json:"qso_last_date,omitempty"`
	CommonName   string `json:"common_name,omitempty"`
	Subject      string `json:"subject"`
	Issuer       string `json:"issuer"`
	SerialNumber string `json:"serial_number,omitempty"`
	ValidFrom    string `json:"valid_from"`
	ValidUntil   string `json:"valid_until"`
	Fingerprint  string `json:"fingerprint_sha256"`
}

// CallRequest is one bridged invocation.
type CallRequest struct {
	ID     string    `json:"id,omitempty"`
	Method string    `json:"method"`
	Args   Arguments `json:"args"`
}

// CallResponse answers a CallRequest. NotImplemented marks an unknown
// method and is never combined with Result. Error reports a request the
// bridge could not decode.
type CallResponse struct {
	ID             string  `json:"id,omitempty"`
	Result         *Result `json:"result,omitempty"`
	NotImplemented bool    `json:"notImplemented,omitempty"`
	Error          string  `json:"error,omitempty"`
}
