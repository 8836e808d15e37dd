package story

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

const personDoc = `{"@id": "https://example.org/people/ada", "@graph": [{"@type": "schema:Person"}]}`

func TestHTTPResolver(t *testing.T) {
	Convey("HTTPResolver", t, func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/ada":
				w.Header().Set("Content-Type", "application/ld+json")
				_, _ = w.Write([]byte(personDoc))
			case "/broken":
				_, _ = w.Write([]byte(`{"@graph": [`))
			case "/big":
				_, _ = w.Write([]byte(personDoc + strings.Repeat(" ", 4096)))
			case "/boom":
				w.WriteHeader(http.StatusInternalServerError)
			default:
				http.NotFound(w, r)
			}
		}))
		defer srv.Close()

		r := NewHTTPResolver(WithHTTPClient(srv.Client()))
		ctx := context.Background()

		Convey("fetches and decodes a story", func() {
			s, err := r.Resolve(ctx, srv.URL+"/ada")
			So(err, ShouldBeNil)
			So(IncludesPerson(s), ShouldBeTrue)
		})

		Convey("maps 404 to ErrNotFound", func() {
			_, err := r.Resolve(ctx, srv.URL+"/nobody")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("maps other statuses to ErrFetch", func() {
			_, err := r.Resolve(ctx, srv.URL+"/boom")
			So(errors.Is(err, ErrFetch), ShouldBeTrue)
		})

		Convey("reports undecodable bodies", func() {
			_, err := r.Resolve(ctx, srv.URL+"/broken")
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})

		Convey("cuts story bodies at the document cap", func() {
			capped := NewHTTPResolver(WithHTTPClient(srv.Client()), WithMaxDocumentBytes(16))
			_, err := capped.Resolve(ctx, srv.URL+"/ada")
			So(errors.Is(err, ErrDecode), ShouldBeTrue)

			roomy := NewHTTPResolver(WithHTTPClient(srv.Client()), WithMaxDocumentBytes(int64(len(personDoc))))
			s, err := roomy.Resolve(ctx, srv.URL+"/big")
			So(err, ShouldBeNil)
			So(IncludesPerson(s), ShouldBeTrue)
		})

		Convey("applies the fetch timeout to a copy of the client in any option order", func() {
			own := &http.Client{}
			before := NewHTTPResolver(WithFetchTimeout(2*time.Second), WithHTTPClient(own))
			after := NewHTTPResolver(WithHTTPClient(own), WithFetchTimeout(3*time.Second))

			So(before.client.Timeout, ShouldEqual, 2*time.Second)
			So(after.client.Timeout, ShouldEqual, 3*time.Second)
			So(own.Timeout, ShouldEqual, time.Duration(0))
		})

		Convey("keeps the default timeout and the caller's own", func() {
			So(NewHTTPResolver().client.Timeout, ShouldEqual, defaultFetchTimeout)
			own := &http.Client{Timeout: time.Minute}
			So(NewHTTPResolver(WithHTTPClient(own)).client.Timeout, ShouldEqual, time.Minute)
		})

		Convey("rejects non-http URLs", func() {
			_, err := r.Resolve(ctx, "ftp://example.org/ada")
			So(errors.Is(err, ErrUnsupportedURL), ShouldBeTrue)
			_, err = r.Resolve(ctx, "urn:uuid:1234")
			So(errors.Is(err, ErrUnsupportedURL), ShouldBeTrue)
		})
	})
}

func TestDirResolver(t *testing.T) {
	Convey("DirResolver", t, func() {
		dir := t.TempDir()
		So(os.WriteFile(filepath.Join(dir, "ada.jsonld"), []byte(personDoc), 0o600), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dir, "lamp.jsonc"), []byte(`{
			// a product, no person
			"url": "https://shop.example/lamp",
			"@graph": [{"@type": "schema:Product"}],
		}`), 0o600), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o600), ShouldBeNil)

		r, err := NewDirResolver(dir)
		So(err, ShouldBeNil)
		ctx := context.Background()

		Convey("indexes by @id, url and file stem", func() {
			s, err := r.Resolve(ctx, "https://example.org/people/ada")
			So(err, ShouldBeNil)
			So(IncludesPerson(s), ShouldBeTrue)

			s, err = r.Resolve(ctx, "https://shop.example/lamp")
			So(err, ShouldBeNil)
			So(IncludesPerson(s), ShouldBeFalse)

			_, err = r.Resolve(ctx, "lamp")
			So(err, ShouldBeNil)
		})

		Convey("falls back to the last path segment", func() {
			s, err := r.Resolve(ctx, "https://elsewhere.example/stories/ada/")
			So(err, ShouldBeNil)
			So(IncludesPerson(s), ShouldBeTrue)
		})

		Convey("reports unknown URLs as not found", func() {
			_, err := r.Resolve(ctx, "https://example.org/people/grace")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("fails on an unreadable directory", func() {
			_, err := NewDirResolver(filepath.Join(dir, "missing"))
			So(err, ShouldNotBeNil)
		})

		Convey("fails on an invalid story file", func() {
			bad := t.TempDir()
			So(os.WriteFile(filepath.Join(bad, "x.json"), []byte(`{`), 0o600), ShouldBeNil)
			_, err := NewDirResolver(bad)
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})
	})
}

func TestChain(t *testing.T) {
	Convey("Chain", t, func() {
		ctx := context.Background()
		found := ResolverFunc(func(context.Context, string) (Story, error) {
			return Story{"@id": "x"}, nil
		})
		missing := ResolverFunc(func(_ context.Context, u string) (Story, error) {
			return nil, ErrNotFound
		})

		Convey("returns the first success", func() {
			s, err := Chain{missing, found}.Resolve(ctx, "x")
			So(err, ShouldBeNil)
			So(s.ID(), ShouldEqual, "x")
		})

		Convey("joins every failure", func() {
			_, err := Chain{missing, missing}.Resolve(ctx, "x")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})

		Convey("an empty chain finds nothing", func() {
			_, err := Chain{}.Resolve(ctx, "x")
			So(errors.Is(err, ErrNotFound), ShouldBeTrue)
		})
	})
}
