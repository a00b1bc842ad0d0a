package transport

import (
	"errors"
	"io"
	"net/http"

	"github.com/fereidani/httpdecompressor"
)

// AcceptEncoding lists the encodings the decompressor can decode, in order of preference.
const AcceptEncoding = "zstd, br, lz4, gzip, deflate"

var errNilRoundTripper = errors.New("transport: nil round tripper")

// NewDecompressor wraps roundTripper so that requests advertise AcceptEncoding
// and compressed response bodies are decoded transparently.
func NewDecompressor(roundTripper http.RoundTripper) http.RoundTripper {
	return &decompressor{
		roundTripper: roundTripper,
	}
}

type decompressor struct {
	roundTripper http.RoundTripper
}

// Compile-time assertion that decompressor implements http.RoundTripper.
var _ http.RoundTripper = (*decompressor)(nil)

func (d *decompressor) RoundTrip(request *http.Request) (*http.Response, error) {
	if d.roundTripper == nil {
		return nil, errNilRoundTripper
	}

	if request.Header.Get("Accept-Encoding") == "" {
		request = request.Clone(request.Context())
		request.Header.Set("Accept-Encoding", AcceptEncoding)
	}

	rsp, err := d.roundTripper.RoundTrip(request)
	if err != nil {
		return rsp, err
	}

	origBody := rsp.Body

	bodyReader, err := httpdecompressor.Reader(rsp)
	if err != nil {
		_ = origBody.Close()

		return nil, err
	}

	if bodyReader == origBody {
		return rsp, nil
	}

	rsp.Body = &decodedBody{
		decoded: bodyReader,
		orig:    origBody,
	}
	rsp.Header.Del("Content-Encoding")
	rsp.Header.Del("Content-Length")
	rsp.ContentLength = -1
	rsp.Uncompressed = true

	return rsp, nil
}

// decodedBody reads the decoded stream and closes the decoder before the
// underlying body.
type decodedBody struct {
	decoded io.Reader
	orig    io.ReadCloser
}

func (b *decodedBody) Read(p []byte) (int, error) {
	return b.decoded.Read(p)
}

func (b *decodedBody) Close() error {
	var errs []error

	if c, ok := b.decoded.(io.Closer); ok {
		errs = append(errs, c.Close())
	}

	errs = append(errs, b.orig.Close())

	return errors.Join(errs...)
}
