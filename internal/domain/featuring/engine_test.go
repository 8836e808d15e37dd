package featuring_test

import (
	"fmt"
	"math/rand/v2"
	"testing"

	"github.com/okian/hyperlocal/internal/domain/directory"
	"github.com/okian/hyperlocal/internal/domain/featuring"
	"github.com/okian/hyperlocal/internal/domain/model"
	"github.com/okian/hyperlocal/internal/domain/story"
	. "github.com/smartystreets/goconvey/convey"
)

type storyMap map[string]story.Story

func (m storyMap) Get(url string) (story.Story, bool) {
	s, ok := m[url]
	return s, ok
}

var (
	person = story.Story{"@graph": []any{map[string]any{"@type": story.PersonType}}}
	thing  = story.Story{"@graph": []any{map[string]any{"@type": "schema:Thing"}}}
)

// build returns directories with the given people counts in order, plus one
// non-person device each, and the stories backing them.
func build(counts ...int) ([]directory.View, storyMap) {
	stories := storyMap{}
	views := make([]directory.View, 0, len(counts))
	for i, n := range counts {
		id := string(rune('A' + i))
		v := directory.View{ID: id, Devices: map[string]model.Event{}}
		for j := 0; j < n; j++ {
			dev := fmt.Sprintf("%s-p%d", id, j)
			url := "https://devices.example/" + dev
			v.Devices[dev] = model.Event{DeviceID: dev, DeviceURL: url}
			stories[url] = person
		}
		obj := id + "-thing"
		v.Devices[obj] = model.Event{DeviceID: obj, DeviceURL: "https://devices.example/" + obj}
		stories["https://devices.example/"+obj] = thing
		views = append(views, v)
	}
	return views, stories
}

func TestEngine_Tick(t *testing.T) {
	Convey("Given directories A:2, B:3, C:3 with A featured", t, func() {
		views, stories := build(2, 3, 3)
		e := featuring.New(stories)
		res := e.Tick(directory.Snapshot{Directories: views, FeaturedDir: "A", HasFeaturedDir: true})

		Convey("Then a directory with the maximum count is featured", func() {
			So(res.HasDirectory, ShouldBeTrue)
			So(res.Directory, ShouldBeIn, []string{"B", "C"})
			So(res.People, ShouldEqual, 3)
			So(res.Switched, ShouldBeTrue)
		})
	})

	Convey("Given directories A:3, B:3 with A featured", t, func() {
		views, stories := build(3, 3)
		res := featuring.New(stories).Tick(directory.Snapshot{Directories: views, FeaturedDir: "A", HasFeaturedDir: true})

		Convey("Then the incumbent keeps its place on a tie", func() {
			So(res.Directory, ShouldEqual, "A")
			So(res.Switched, ShouldBeFalse)
		})
	})

	Convey("Given a featured directory that lost everyone", t, func() {
		views, stories := build(0, 1)
		res := featuring.New(stories).Tick(directory.Snapshot{Directories: views, FeaturedDir: "A", HasFeaturedDir: true})

		Convey("Then any directory with people takes over", func() {
			So(res.Directory, ShouldEqual, "B")
			So(res.People, ShouldEqual, 1)
		})
	})

	Convey("Given no directories at all", t, func() {
		res := featuring.New(storyMap{}).Tick(directory.Snapshot{})

		Convey("Then nothing is featured", func() {
			So(res.HasDirectory, ShouldBeFalse)
			So(res.HasStory, ShouldBeFalse)
		})
	})

	Convey("Given exactly one featured story", t, func() {
		res := featuring.New(storyMap{}).Tick(directory.Snapshot{
			FeaturedStories: map[string]story.Story{"u1": person},
		})

		Convey("Then it is the featured story URL", func() {
			So(res.HasStory, ShouldBeTrue)
			So(res.StoryURL, ShouldEqual, "u1")
		})
	})

	Convey("Given several featured stories and a seeded source", t, func() {
		snap := directory.Snapshot{FeaturedStories: map[string]story.Story{"u1": person, "u2": person, "u3": person}}
		e := featuring.New(storyMap{}, featuring.WithRand(rand.New(rand.NewPCG(1, 2))))

		Convey("Then every pick is one of them and all of them come up", func() {
			seen := map[string]bool{}
			for i := 0; i < 200; i++ {
				res := e.Tick(snap)
				So(res.StoryURL, ShouldBeIn, []string{"u1", "u2", "u3"})
				seen[res.StoryURL] = true
			}
			So(seen, ShouldHaveLength, 3)
		})
	})
}

func TestEngine_People(t *testing.T) {
	Convey("People counts only devices whose story includes a person", t, func() {
		stories := storyMap{"https://p": person, "https://t": thing}
		v := directory.View{Devices: map[string]model.Event{
			"a": {DeviceURL: "https://p"},
			"b": {DeviceURL: "https://t"},
			"c": {DeviceURL: "https://unresolved"},
			"d": {},
		}}
		So(featuring.New(stories).People(v), ShouldEqual, 1)
	})
}
