// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"net/http"
	"testing"

	"github.com/stackhpc/activestorage-go/apierr"
)

func TestCredentialsFromRequestBasicAuth(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid/v1/sum", nil)
	req.SetBasicAuth("AKIAEXAMPLE", "secret")

	creds, err := credentialsFromRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if creds.AccessKey != "AKIAEXAMPLE" || creds.SecretKey != "secret" {
		t.Fatalf("creds = %+v, want AKIAEXAMPLE/secret", creds)
	}
}

func TestCredentialsFromRequestAnonymous(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid/v1/sum", nil)

	creds, err := credentialsFromRequest(req)
	if err != nil {
		t.Fatal(err)
	}
	if creds.AccessKey != "" || creds.SecretKey != "" {
		t.Fatalf("creds = %+v, want empty (anonymous)", creds)
	}
}

func TestCredentialsFromRequestMalformedAuthHeader(t *testing.T) {
	req, _ := http.NewRequest(http.MethodPost, "http://example.invalid/v1/sum", nil)
	req.Header.Set("Authorization", "Bearer not-basic-auth")

	_, err := credentialsFromRequest(req)
	if err == nil {
		t.Fatal("expected an error for a non-Basic Authorization header")
	}
	if apierr.As(err).Kind != apierr.InvalidRequest {
		t.Fatalf("Kind = %v, want InvalidRequest", apierr.As(err).Kind)
	}
}
