package testevents

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoadScenario(t *testing.T) {
	Convey("Given a scenario file", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "venue.yaml")

		Convey("When it lists directories", func() {
			content := `
story_base_url: http://example.test
people_ratio: 1
directories:
  - id: lobby
    receivers: [rx-1, rx-2]
  - id: hall
`
			So(os.WriteFile(path, []byte(content), 0o600), ShouldBeNil)
			sc, err := LoadScenario(path)

			Convey("Then it is parsed with defaults filled in", func() {
				So(err, ShouldBeNil)
				So(sc.StoryBaseURL, ShouldEqual, "http://example.test")
				So(sc.PeopleRatio, ShouldEqual, float64(1))
				So(sc.DisappearRatio, ShouldEqual, DefaultScenario().DisappearRatio)
				So(sc.Directories, ShouldHaveLength, 2)
				So(sc.Directories[1].Receivers, ShouldResemble, []string{"rx-hall"})
			})
		})

		Convey("When it has no directories", func() {
			So(os.WriteFile(path, []byte("people_ratio: 0.5\n"), 0o600), ShouldBeNil)
			_, err := LoadScenario(path)
			So(err, ShouldNotBeNil)
		})

		Convey("When it does not exist", func() {
			_, err := LoadScenario(filepath.Join(dir, "missing.yaml"))
			So(err, ShouldNotBeNil)
		})
	})
}
