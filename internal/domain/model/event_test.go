package model_test

import (
	"encoding/json"
	"errors"
	"testing"

	model "github.com/okian/hyperlocal/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func TestParseKind(t *testing.T) {
	convey.Convey("Given wire event names", t, func() {
		convey.Convey("When parsing the four documented kinds", func() {
			for _, k := range model.Kinds {
				got, err := model.ParseKind(string(k))
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldEqual, k)
			}
		})

		convey.Convey("When parsing with odd casing and spacing", func() {
			got, err := model.ParseKind("  Keep-Alive ")

			convey.Convey("Then it is normalized", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(got, convey.ShouldEqual, model.KeepAlive)
			})
		})

		convey.Convey("When parsing an unknown name", func() {
			_, err := model.ParseKind("teleport")

			convey.Convey("Then it reports ErrUnknownKind", func() {
				convey.So(errors.Is(err, model.ErrUnknownKind), convey.ShouldBeTrue)
			})
		})
	})
}

func TestEventValidate(t *testing.T) {
	convey.Convey("Given an event", t, func() {
		e := model.Event{Kind: "KEEPALIVE", DeviceID: "d1", ReceiverID: "r1", ReceiverDirectory: "lobby"}

		convey.Convey("When it is valid", func() {
			err := e.Validate()

			convey.Convey("Then the kind is normalized", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(e.Kind, convey.ShouldEqual, model.KeepAlive)
			})
		})

		convey.Convey("When the device id is blank", func() {
			e.DeviceID = "  "
			convey.So(errors.Is(e.Validate(), model.ErrMissingDeviceID), convey.ShouldBeTrue)
		})

		convey.Convey("When the directory is missing", func() {
			e.ReceiverDirectory = ""

			convey.Convey("Then validation still passes", func() {
				convey.So(e.Validate(), convey.ShouldBeNil)
			})
		})
	})
}

func TestEventWireShape(t *testing.T) {
	convey.Convey("Given a wire event from the event source", t, func() {
		raw := `{"event":"appearance","deviceId":"001bc50940100000","deviceUrl":"http://myjson.info/stories/alice",
			"receiverId":"001bc50940800000","receiverUrl":"http://myjson.info/stories/lobby","receiverDirectory":"notman:first:lobby"}`

		convey.Convey("When decoding it", func() {
			var e model.Event
			err := json.Unmarshal([]byte(raw), &e)

			convey.Convey("Then every field lands in place", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(e.Kind, convey.ShouldEqual, model.Appearance)
				convey.So(e.DeviceID, convey.ShouldEqual, "001bc50940100000")
				convey.So(e.DeviceURL, convey.ShouldEqual, "http://myjson.info/stories/alice")
				convey.So(e.ReceiverID, convey.ShouldEqual, "001bc50940800000")
				convey.So(e.ReceiverDirectory, convey.ShouldEqual, "notman:first:lobby")
				convey.So(e.Time.IsZero(), convey.ShouldBeTrue)
			})
		})
	})
}
