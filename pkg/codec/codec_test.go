package codec_test

import (
	"errors"
	"testing"
	"time"

	"github.com/okian/hyperlocal/pkg/codec"
	. "github.com/smartystreets/goconvey/convey"
)

type item struct {
	ID   string    `json:"id" cbor:"id"`
	N    int       `json:"n" cbor:"n"`
	Time time.Time `json:"time" cbor:"time"`
}

func TestMediaType(t *testing.T) {
	Convey("MediaType", t, func() {
		for header, want := range map[string]string{
			"":                                codec.MediaJSON,
			"application/json":                codec.MediaJSON,
			"application/json; charset=utf-8": codec.MediaJSON,
			"application/ld+json":             codec.MediaJSON,
			"application/cbor":                codec.MediaCBOR,
		} {
			got, err := codec.MediaType(header)
			So(err, ShouldBeNil)
			So(got, ShouldEqual, want)
		}

		_, err := codec.MediaType("text/plain")
		So(errors.Is(err, codec.ErrUnsupportedMediaType), ShouldBeTrue)
		_, err = codec.MediaType(";;;")
		So(errors.Is(err, codec.ErrUnsupportedMediaType), ShouldBeTrue)
	})
}

func TestDecodeBatch_JSON(t *testing.T) {
	Convey("Given JSON bodies", t, func() {
		Convey("When the body is a single object", func() {
			got, err := codec.DecodeBatch[item]("application/json", []byte(` {"id":"a","n":1} `))

			Convey("Then it decodes as a batch of one", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 1)
				So(got[0].ID, ShouldEqual, "a")
			})
		})

		Convey("When the body is an array", func() {
			got, err := codec.DecodeBatch[item]("", []byte(`[{"id":"a"},{"id":"b","n":2}]`))

			Convey("Then every element is decoded in order", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[1].N, ShouldEqual, 2)
			})
		})

		Convey("When the body is empty or an empty array", func() {
			_, err := codec.DecodeBatch[item]("", []byte("  "))
			So(errors.Is(err, codec.ErrEmpty), ShouldBeTrue)
			_, err = codec.DecodeBatch[item]("", []byte("[]"))
			So(errors.Is(err, codec.ErrEmpty), ShouldBeTrue)
		})

		Convey("When the body is malformed", func() {
			_, err := codec.DecodeBatch[item]("", []byte(`{"id":`))
			So(errors.Is(err, codec.ErrDecode), ShouldBeTrue)
		})
	})
}

func TestDecodeBatch_CBOR(t *testing.T) {
	Convey("Given CBOR bodies", t, func() {
		ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

		Convey("When the body is an array", func() {
			raw, err := codec.MarshalCBOR([]item{{ID: "a", Time: ts}, {ID: "b", N: 3}})
			So(err, ShouldBeNil)
			got, err := codec.DecodeBatch[item](codec.MediaCBOR, raw)

			Convey("Then it round-trips", func() {
				So(err, ShouldBeNil)
				So(got, ShouldHaveLength, 2)
				So(got[0].Time.Equal(ts), ShouldBeTrue)
				So(got[1].N, ShouldEqual, 3)
			})
		})

		Convey("When the body is a single map", func() {
			raw, err := codec.MarshalCBOR(item{ID: "solo"})
			So(err, ShouldBeNil)
			got, err := codec.DecodeBatch[item](codec.MediaCBOR, raw)
			So(err, ShouldBeNil)
			So(got[0].ID, ShouldEqual, "solo")
		})

		Convey("When the body is truncated", func() {
			raw, _ := codec.MarshalCBOR([]item{{ID: "a"}})
			_, err := codec.DecodeBatch[item](codec.MediaCBOR, raw[:len(raw)-1])
			So(errors.Is(err, codec.ErrDecode), ShouldBeTrue)
		})

		Convey("When the body is empty", func() {
			_, err := codec.DecodeBatch[item](codec.MediaCBOR, nil)
			So(errors.Is(err, codec.ErrEmpty), ShouldBeTrue)
		})
	})
}
