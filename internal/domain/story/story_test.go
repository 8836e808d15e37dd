package story

import (
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestIncludesPerson(t *testing.T) {
	Convey("IncludesPerson", t, func() {
		Convey("finds a Person node in the graph", func() {
			s := Story{"@graph": []any{
				map[string]any{"@type": "schema:Place"},
				map[string]any{"@type": "schema:Person", "name": "Ada"},
			}}
			So(IncludesPerson(s), ShouldBeTrue)
		})

		Convey("accepts an array-valued @type", func() {
			s := Story{"@graph": []any{
				map[string]any{"@type": []any{"schema:Thing", "schema:Person"}},
			}}
			So(IncludesPerson(s), ShouldBeTrue)
		})

		Convey("is false without a Person node", func() {
			s := Story{"@graph": []any{map[string]any{"@type": "schema:Product"}}}
			So(IncludesPerson(s), ShouldBeFalse)
		})

		Convey("is false for absent or malformed stories", func() {
			So(IncludesPerson(nil), ShouldBeFalse)
			So(IncludesPerson(Story{}), ShouldBeFalse)
			So(IncludesPerson(Story{"@graph": "schema:Person"}), ShouldBeFalse)
			So(IncludesPerson(Story{"@graph": []any{"schema:Person", 42}}), ShouldBeFalse)
		})
	})
}

func TestDecode(t *testing.T) {
	Convey("Decode", t, func() {
		Convey("tolerates comments and trailing commas", func() {
			data := []byte(`{
				// a hand-written story
				"@id": "https://example.org/ada",
				"@graph": [
					{"@type": "schema:Person", "name": "Ada"},
				],
			}`)
			s, err := Decode(data)
			So(err, ShouldBeNil)
			So(s.ID(), ShouldEqual, "https://example.org/ada")
			So(IncludesPerson(s), ShouldBeTrue)
		})

		Convey("wraps syntax errors", func() {
			_, err := Decode([]byte(`{"@graph": [`))
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})

		Convey("rejects non-object documents", func() {
			_, err := Decode([]byte(`[1, 2, 3]`))
			So(errors.Is(err, ErrDecode), ShouldBeTrue)
		})
	})
}
