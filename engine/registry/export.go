package registry

import (
	"context"
	"encoding/json"
	"os"
	"time"

	gtfsrt "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/golang/protobuf/proto"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/object"
)

// TripUpdate is one exported arrival prediction: the next departure
// from one stop of one route direction.
type TripUpdate struct {
	RouteKey    string    `json:"routeKey"`
	RouteNumber string    `json:"routeNumber"`
	Co          string    `json:"co"`
	StopID      string    `json:"stopId"`
	StopSeq     int       `json:"stopSeq"`
	Arrival     time.Time `json:"arrival"`
}

// AsProto converts the update into a GTFS-RT FeedEntity.
func (u *TripUpdate) AsProto() *gtfsrt.FeedEntity {
	id := u.RouteKey + "/" + u.StopID
	seq := uint32(u.StopSeq)
	arrival := u.Arrival.Unix()
	return &gtfsrt.FeedEntity{
		Id: &id,
		TripUpdate: &gtfsrt.TripUpdate{
			Trip: &gtfsrt.TripDescriptor{
				TripId:  &u.RouteKey,
				RouteId: &u.RouteNumber,
			},
			StopTimeUpdate: []*gtfsrt.TripUpdate_StopTimeUpdate{{
				StopSequence: &seq,
				StopId:       &u.StopID,
				Arrival:      &gtfsrt.TripUpdate_StopTimeEvent{Time: &arrival},
			}},
		},
	}
}

// TripUpdateContainer gathers the predictions of one export round.
type TripUpdateContainer struct {
	Timestamp time.Time     `json:"timestamp"`
	Updates   []*TripUpdate `json:"updates"`
}

// AsProto returns the container marshalled into a GTFS-RT FeedMessage.
func (tc *TripUpdateContainer) AsProto() *gtfsrt.FeedMessage {
	msg := makeFeedMessage(tc.Timestamp)
	msg.Entity = make([]*gtfsrt.FeedEntity, 0, len(tc.Updates))
	for _, u := range tc.Updates {
		msg.Entity = append(msg.Entity, u.AsProto())
	}
	return msg
}

// SavePB writes the container to a GTFS-RT protocol buffer file, or
// its human-readable text rendering.
func (tc *TripUpdateContainer) SavePB(target string, humanReadable bool) (err error) {
	f, err := os.Create(target)
	if err != nil {
		return
	}
	defer f.Close()

	if humanReadable {
		err = proto.MarshalText(f, tc.AsProto())
		if err != nil {
			return
		}
	} else {
		var b []byte
		b, err = proto.Marshal(tc.AsProto())
		if err != nil {
			return
		}
		_, err = f.Write(b)
	}
	return
}

// SaveJSON writes the container as indented JSON.
func (tc *TripUpdateContainer) SaveJSON(target string) (err error) {
	f, err := os.Create(target)
	if err != nil {
		return
	}
	defer f.Close()

	b, err := json.MarshalIndent(tc, "", "  ")
	if err != nil {
		return
	}
	_, err = f.Write(b)
	return
}

func makeFeedMessage(t time.Time) *gtfsrt.FeedMessage {
	ver := "2.0"
	incr := gtfsrt.FeedHeader_FULL_DATASET
	tstamp := uint64(t.UTC().Unix())
	return &gtfsrt.FeedMessage{
		Header: &gtfsrt.FeedHeader{
			GtfsRealtimeVersion: &ver,
			Incrementality:      &incr,
			Timestamp:           &tstamp,
		},
	}
}

// CollectTripUpdates queries live arrivals for every pinned favourite
// route stop and packs the answers into an exportable container.
// Stops whose feed is unreachable or which have no scheduled departure
// are left out rather than failing the round.
func (r *Registry) CollectTripUpdates(ctx context.Context) (*TripUpdateContainer, error) {
	if _, err := r.data(); err != nil {
		return nil, err
	}

	now := r.now()
	tc := &TripUpdateContainer{Timestamp: now}
	for _, fav := range r.Favourites() {
		route := fav.Route
		co := object.ValueOf(fav.Co)
		res, err := r.QueryEta(ctx, fav.StopID, co, &route)
		if err != nil {
			return nil, err
		}
		if res.IsConnectionError || res.NextScheduledBus < 0 {
			continue
		}
		tc.Updates = append(tc.Updates, &TripUpdate{
			RouteKey:    fav.RouteKey,
			RouteNumber: route.RouteNumber,
			Co:          co.Name,
			StopID:      fav.StopID,
			StopSeq:     fav.Index,
			Arrival:     now.Add(time.Duration(res.NextScheduledBus) * time.Minute),
		})
	}
	return tc, nil
}
