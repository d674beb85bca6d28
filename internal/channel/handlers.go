package channel

import (
	"context"
	"encoding/hex"

	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/certs"
	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/chain"
	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/pkcs12store"
	"github.com/vocdoni/gofirma/lotwsign/internal/crypto/signer"
	"github.com/vocdoni/gofirma/lotwsign/internal/model"
)

const (
	MethodSign                = "sign"
	MethodGetCertificate      = "getCertificate"
	MethodGetCertificateInfo  = "getCertificateInfo"
	MethodGetCertificateChain = "getCertificateChain"
)

func (r *Router) sign(ctx context.Context, args model.Arguments) (model.Result, error) {
	if err := args.Validate(true); err != nil {
		return model.Result{}, err
	}

	var sig string
	err := r.loader.WithIdentity(args.P12, args.Password, pkcs12store.NeedPrivateKey, func(id *pkcs12store.Identity) error {
		recordIdentity(ctx, id)
		var err error
		sig, err = signer.SignBase64(id.Signer, args.Data)
		return err
	})
	if err != nil {
		return model.Result{}, err
	}
	return model.Result{OK: true, SignatureB64: sig}, nil
}

func (r *Router) getCertificate(ctx context.Context, args model.Arguments) (model.Result, error) {
	if err := args.Validate(false); err != nil {
		return model.Result{}, err
	}

	var certB64 string
	err := r.loader.WithIdentity(args.P12, args.Password, pkcs12store.NeedCertificate, func(id *pkcs12store.Identity) error {
		recordIdentity(ctx, id)
		var err error
		certB64, err = certs.ExportBase64(id.Certificate)
		return err
	})
	if err != nil {
		return model.Result{}, err
	}
	return model.Result{OK: true, Certificate: certB64}, nil
}

func (r *Router) getCertificateInfo(ctx context.Context, args model.Arguments) (model.Result, error) {
	if err := args.Validate(false); err != nil {
		return model.Result{}, err
	}

	var info certs.ExtractedInfo
	err := r.loader.WithIdentity(args.P12, args.Password, pkcs12store.NeedCertificate, func(id *pkcs12store.Identity) error {
		recordIdentity(ctx, id)
		info = certs.Extract(id.Certificate)
		return nil
	})
	if err != nil {
		return model.Result{}, err
	}
	return model.Result{OK: true, CertificateInfo: &model.CertificateInfo{
		Callsign:     info.Callsign,
		DXCCEntity:   info.DXCCEntity,
		QSOFirstDate: info.QSOFirstDate,
		QSOLastDate:  info.QSOLastDate,
		CommonName:   info.CommonName,
		Subject:      info.RawSubject,
		Issuer:       info.Issuer,
		SerialNumber: info.SerialNumber,
		ValidFrom:    info.ValidFrom,
		ValidUntil:   info.ValidUntil,
		Fingerprint:  info.Fingerprint,
	}}, nil
}

func (r *Router) getCertificateChain(ctx context.Context, args model.Arguments) (model.Result, error) {
	if err := args.Validate(false); err != nil {
		return model.Result{}, err
	}

	var p7b string
	err := r.loader.WithIdentity(args.P12, args.Password, pkcs12store.NeedCertificate, func(id *pkcs12store.Identity) error {
		recordIdentity(ctx, id)
		var err error
		p7b, err = chain.BundleBase64(id.Certificate, id.Chain)
		return err
	})
	if err != nil {
		return model.Result{}, err
	}
	return model.Result{OK: true, ChainP7B: p7b}, nil
}

func recordIdentity(ctx context.Context, id *pkcs12store.Identity) {
	n := noteFrom(ctx)
	if n == nil || id.Certificate == nil {
		return
	}
	fp := id.Fingerprint()
	n.fingerprint = hex.EncodeToString(fp[:])
}
