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

// Package s3 implements a lightweight client of the AWS S3 API: just
// enough to perform ranged and whole-object GETs against a signed
// endpoint. The Reader type views an S3 object as an io.ReaderAt.
package s3

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/stackhpc/activestorage-go/aws"
)

// DefaultClient is the default HTTP client used for requests made
// from this package.
var DefaultClient = http.Client{
	Transport: &http.Transport{
		ResponseHeaderTimeout: 60 * time.Second,
		// Empirically, AWS creates about 40
		// DNS entries for S3, so 5 connections
		// per host is about 100 total connections.
		// (Note that the default here is 2!)
		MaxIdleConnsPerHost: 5,
		// Don't set Accept-Encoding: gzip
		// because it leads to the go client natively
		// decompressing gzipped objects.
		DisableCompression: true,
		// AWS S3 occasionally provides "dead" hosts
		// in their round-robin DNS responses, and the
		// fastest way to identify them is during
		// connection establishment:
		DialContext: (&net.Dialer{
			Timeout: 2 * time.Second,
		}).DialContext,
	},
}

var (
	// ErrInvalidBucket is returned from calls that attempt
	// to use a bucket name that isn't valid according to
	// the S3 specification.
	ErrInvalidBucket = errors.New("invalid bucket name")
)

func badBucket(name string) error {
	return fmt.Errorf("%w: %s", ErrInvalidBucket, name)
}

// ValidBucket returns whether or not
// bucket is a valid bucket name.
//
// See https://docs.aws.amazon.com/AmazonS3/latest/userguide/bucketnamingrules.html
//
// Note: ValidBucket allows '.' characters, but not as the
// first or last character and not two in a row. (AWS docs say
// dotted names are "not recommended for uses other than static
// website hosting"; rawURI addresses them path-style.)
func ValidBucket(bucket string) bool {
	if len(bucket) < 3 || len(bucket) > 63 {
		return false
	}
	if strings.HasPrefix(bucket, "xn--") {
		return false
	}
	if strings.HasSuffix(bucket, "-s3alias") {
		return false
	}
	for i := 0; i < len(bucket); i++ {
		if bucket[i] >= 'a' && bucket[i] <= 'z' {
			continue
		}
		if bucket[i] >= '0' && bucket[i] <= '9' {
			continue
		}
		if i > 0 && i < len(bucket)-1 {
			if bucket[i] == '-' {
				continue
			}
			if bucket[i] == '.' && bucket[i-1] != '.' {
				continue
			}
		}
		return false
	}
	return true
}

// Reader presents a read-only view of an S3 object, addressed by a
// signing key, bucket and object key.
type Reader struct {
	// Key is the signing key that Reader uses to make HTTP
	// requests. The key may have to be refreshed every so often
	// (see aws.SigningKey.Derived). A key with an empty AccessKey
	// still supplies the endpoint, but requests are sent unsigned
	// (anonymous access).
	Key *aws.SigningKey

	// Client is the HTTP client used to make HTTP requests. A nil
	// Client falls back to DefaultClient.
	Client *http.Client

	// Bucket is the S3 bucket holding the object.
	Bucket string
	// Path is the S3 object key.
	Path string
}

// rawURI produces a URI with a pre-escaped path+query string
func rawURI(k *aws.SigningKey, bucket string, query string) string {
	endPoint := k.BaseURI
	if endPoint == "" {
		// use virtual-host style if the bucket is compatible
		// (fallback to path-style if not)
		if strings.IndexByte(bucket, '.') < 0 {
			return "https://" + bucket + ".s3." + k.Region + ".amazonaws.com" + "/" + query
		}
		return "https://s3." + k.Region + ".amazonaws.com" + "/" + bucket + "/" + query
	}
	return endPoint + "/" + bucket + "/" + query
}

// almostPathEscape performs S3-specific path escaping; all the
// special characters are turned into their quoted bits, but we turn
// %2F back into / because AWS accepts those as part of the URI.
func almostPathEscape(s string) string {
	return strings.ReplaceAll(queryEscape(s), "%2F", "/")
}

func queryEscape(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// uri produces a URI by path-escaping the object string
// and passing it to rawURI (see also almostPathEscape)
func uri(k *aws.SigningKey, bucket, object string) string {
	return rawURI(k, bucket, almostPathEscape(object))
}

func flakyDo(cl *http.Client, req *http.Request) (*http.Response, error) {
	if cl == nil {
		cl = &DefaultClient
	}
	res, err := cl.Do(req)
	if err == nil && (res.StatusCode != 500 && res.StatusCode != 503) {
		return res, err
	}
	if req.Body != nil && req.GetBody == nil {
		// can't re-do this request because
		// we can't rewind the Body reader
		return res, err
	}
	if res != nil {
		res.Body.Close()
	}
	if req.Body != nil {
		req.Body, err = req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("req.GetBody: %w", err)
		}
	}
	return cl.Do(req)
}

func extractMessage(r io.Reader) string {
	b, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil {
		return ""
	}
	return string(b)
}

// NewReader constructs a Reader for the given bucket and object,
// signed with k. It performs no I/O; the object is not assumed to
// exist until a read call is made.
func NewReader(k *aws.SigningKey, bucket, object string) (*Reader, error) {
	if !ValidBucket(bucket) {
		return nil, badBucket(bucket)
	}
	return &Reader{Key: k, Bucket: bucket, Path: object}, nil
}

// RangeReader produces an io.ReadCloser that reads bytes starting at
// off. If width > 0 the range is closed: [off, off+width). If width
// <= 0 and off > 0, the range is open-ended: [off, EOF). If width <=
// 0 and off == 0, no Range header is sent and the whole object is
// returned.
//
// It is the caller's responsibility to call Close()
// on the returned io.ReadCloser.
func (r *Reader) RangeReader(off, width int64) (io.ReadCloser, error) {
	req, err := http.NewRequest(http.MethodGet, uri(r.Key, r.Bucket, r.Path), nil)
	if err != nil {
		return nil, err
	}
	switch {
	case width > 0:
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+width-1))
	case off > 0:
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", off))
	}
	if r.Key.AccessKey != "" {
		r.Key.SignV4(req, nil)
	}
	res, err := flakyDo(r.Client, req)
	if err != nil {
		return nil, err
	}
	switch res.StatusCode {
	default:
		defer res.Body.Close()
		return nil, fmt.Errorf("s3.Reader.RangeReader: status %s %q", res.Status, extractMessage(res.Body))
	case http.StatusNotFound:
		res.Body.Close()
		return nil, &fs.PathError{Op: "read", Path: r.Path, Err: fs.ErrNotExist}
	case http.StatusUnauthorized, http.StatusForbidden:
		res.Body.Close()
		return nil, &fs.PathError{Op: "read", Path: r.Path, Err: fs.ErrPermission}
	case http.StatusPartialContent, http.StatusOK:
		// okay; fallthrough
	}
	return res.Body, nil
}

// ReadAt implements io.ReaderAt over the whole object, fetching
// exactly len(dst) bytes starting at off.
func (r *Reader) ReadAt(dst []byte, off int64) (int, error) {
	rd, err := r.RangeReader(off, int64(len(dst)))
	if err != nil {
		return 0, err
	}
	defer rd.Close()
	return io.ReadFull(rd, dst)
}

// ReadAll fetches the whole object (off=0, no Range header).
func (r *Reader) ReadAll() ([]byte, error) {
	rd, err := r.RangeReader(0, 0)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	return io.ReadAll(rd)
}
