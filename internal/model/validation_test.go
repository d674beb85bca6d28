package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name        string
		args        Arguments
		requireData bool
		wantErr     string
	}{
		{name: "ok", args: Arguments{Data: "x", P12: []byte{1}}, requireData: true},
		{name: "empty password accepted", args: Arguments{P12: []byte{1}}, requireData: false},
		{name: "no data", args: Arguments{P12: []byte{1}}, requireData: true, wantErr: "data is empty"},
		{name: "no p12", args: Arguments{Data: "x"}, requireData: true, wantErr: "p12 is empty"},
		{name: "nothing", args: Arguments{}, requireData: true, wantErr: "p12 is empty"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.args.Validate(tt.requireData)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.EqualError(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidArgument)
		})
	}
}

func TestResultJSON(t *testing.T) {
	b, err := json.Marshal(Result{OK: true, SignatureB64: "c2ln"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"signature_b64":"c2ln"}`, string(b))

	b, err = json.Marshal(Failure("p12 is empty"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":false,"error":"p12 is empty"}`, string(b))
}

func TestArgumentsP12IsBase64(t *testing.T) {
	var args Arguments
	require.NoError(t, json.Unmarshal([]byte(`{"data":"d","p12":"AQID","password":""}`), &args))
	assert.Equal(t, []byte{1, 2, 3}, args.P12)
}
