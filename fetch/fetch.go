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

// Package fetch requests byte ranges from S3-compatible storage,
// caching one signed client per (source endpoint, credentials) pair.
package fetch

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/url"
	"strings"
	"sync"

	"github.com/stackhpc/activestorage-go/apierr"
	"github.com/stackhpc/activestorage-go/aws"
	"github.com/stackhpc/activestorage-go/aws/s3"
)

// Credentials is the S3 access key/secret pair extracted from an
// incoming request's HTTP Basic auth header. A zero value means
// anonymous (unsigned) access.
type Credentials struct {
	AccessKey string
	SecretKey string
}

func (c Credentials) anonymous() bool { return c.AccessKey == "" }

// Object names the S3 endpoint, bucket, and key RequestData points
// at, plus the byte range to fetch.
type Object struct {
	Source string // S3 endpoint URL, e.g. "https://s3.example.com"
	Bucket string
	Key    string
	Offset int64
	Size   int64 // 0 means "from Offset to the end of the object"
}

// Region is the SigV4 signing region used for every request. Real
// S3-compatible endpoints (minio, ceph, etc.) generally accept any
// region value for requests signed against a fixed endpoint, and
// RequestData carries no region field, so a single server-wide
// default is used instead of one derived per-bucket.
var Region = "us-east-1"

// Fetcher resolves (source, credentials) pairs to cached signed
// clients and performs ranged GETs against them.
type Fetcher struct {
	mu      sync.Mutex
	clients map[clientKey]*s3.Reader
}

type clientKey struct {
	source    string
	accessKey string
	secretKey string
}

// New returns an empty Fetcher. The zero value is also usable.
func New() *Fetcher {
	return &Fetcher{clients: make(map[clientKey]*s3.Reader)}
}

// reader returns the cached Reader for (obj.Source, obj.Bucket,
// obj.Key, creds), creating and caching the underlying signing key
// if this is the first use of that (source, credentials) pair.
// Creation holds the Fetcher's single lock, so concurrent first-use
// requests for the same key share one client, and first-use creation
// for distinct keys is serialized as well; cache hits only take the
// lock for the map lookup.
func (f *Fetcher) reader(obj Object, creds Credentials) (*s3.Reader, error) {
	key := clientKey{source: obj.Source, accessKey: creds.AccessKey, secretKey: creds.SecretKey}

	f.mu.Lock()
	if f.clients == nil {
		f.clients = make(map[clientKey]*s3.Reader)
	}
	cached, ok := f.clients[key]
	f.mu.Unlock()
	if ok {
		return rebind(cached, obj.Bucket, obj.Key)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if cached, ok := f.clients[key]; ok {
		return rebind(cached, obj.Bucket, obj.Key)
	}

	baseURI, err := normalizeEndpoint(obj.Source)
	if err != nil {
		return nil, apierr.New(apierr.InvalidRequest, err.Error())
	}

	var signingKey *aws.SigningKey
	if creds.anonymous() {
		signingKey = aws.DeriveKey(baseURI, "", "", Region, "s3")
	} else {
		signingKey = aws.DeriveKey(baseURI, creds.AccessKey, creds.SecretKey, Region, "s3")
	}

	rd, err := s3.NewReader(signingKey, obj.Bucket, obj.Key)
	if err != nil {
		return nil, apierr.New(apierr.InvalidRequest, err.Error())
	}
	f.clients[key] = rd
	return rd, nil
}

// rebind returns a shallow copy of base pointed at a different
// bucket/key, reusing its signing key and HTTP client.
func rebind(base *s3.Reader, bucket, key string) (*s3.Reader, error) {
	if !s3.ValidBucket(bucket) {
		return nil, apierr.New(apierr.InvalidRequest, fmt.Sprintf("invalid bucket name: %s", bucket))
	}
	clone := *base
	clone.Bucket = bucket
	clone.Path = key
	return &clone, nil
}

func normalizeEndpoint(source string) (string, error) {
	if source == "" {
		return "", nil // default AWS S3 endpoint
	}
	u, err := url.Parse(source)
	if err != nil {
		return "", fmt.Errorf("invalid source endpoint %q: %w", source, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("invalid source endpoint %q: must be an absolute URL", source)
	}
	return strings.TrimSuffix(source, "/"), nil
}

// Fetch performs the ranged (or whole-object) GET described by obj,
// using creds to sign the upstream request. The caller must already
// hold an S3 connection permit for the duration of this call.
func Fetch(f *Fetcher, obj Object, creds Credentials) ([]byte, error) {
	rd, err := f.reader(obj, creds)
	if err != nil {
		return nil, err
	}

	var body []byte
	if obj.Size > 0 {
		body = make([]byte, obj.Size)
		rc, rerr := rd.RangeReader(obj.Offset, obj.Size)
		if rerr != nil {
			return nil, translate(rerr)
		}
		defer rc.Close()
		if _, rerr = io.ReadFull(rc, body); rerr != nil {
			return nil, apierr.New(apierr.S3Transport, rerr.Error())
		}
		return body, nil
	}

	if obj.Offset > 0 {
		rc, rerr := rd.RangeReader(obj.Offset, 0)
		if rerr != nil {
			return nil, translate(rerr)
		}
		defer rc.Close()
		body, rerr = io.ReadAll(rc)
		if rerr != nil {
			return nil, apierr.New(apierr.S3Transport, rerr.Error())
		}
		return body, nil
	}

	body, err = rd.ReadAll()
	if err != nil {
		return nil, translate(err)
	}
	return body, nil
}

// translate maps a low-level transport/fs error to the taxonomy in
// §7: a missing object surfaces as S3NotFound, a permission error as
// S3Unauthorized, anything else as S3Transport.
func translate(err error) error {
	var pathErr *fs.PathError
	if errors.As(err, &pathErr) {
		switch {
		case errors.Is(pathErr.Err, fs.ErrNotExist):
			return apierr.New(apierr.S3NotFound, err.Error())
		case errors.Is(pathErr.Err, fs.ErrPermission):
			return apierr.New(apierr.S3Unauthorized, err.Error())
		}
	}
	return apierr.New(apierr.S3Transport, err.Error())
}
