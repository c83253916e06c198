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

	"github.com/stackhpc/activestorage-go/apierr"
	"github.com/stackhpc/activestorage-go/fetch"
)

// credentialsFromRequest extracts S3 access key/secret from r's HTTP
// Basic auth header, following the spec's mapping of Basic auth onto
// S3 credentials. No Authorization header at all is anonymous: the
// fetcher signs nothing and relies on the bucket allowing unsigned
// requests. An Authorization header that is present but not valid
// Basic auth is rejected before the request body is even parsed.
func credentialsFromRequest(r *http.Request) (fetch.Credentials, error) {
	if r.Header.Get("Authorization") == "" {
		return fetch.Credentials{}, nil
	}
	accessKey, secretKey, ok := r.BasicAuth()
	if !ok {
		return fetch.Credentials{}, apierr.New(apierr.InvalidRequest, "Authorization header present but not valid HTTP Basic auth")
	}
	return fetch.Credentials{AccessKey: accessKey, SecretKey: secretKey}, nil
}
