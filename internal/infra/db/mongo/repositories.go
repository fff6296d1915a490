package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "resort/internal/domain/booking"
	domaincatalog "resort/internal/domain/catalog"
	domainrooms "resort/internal/domain/rooms"
	domainuser "resort/internal/domain/user"
	domainyoga "resort/internal/domain/yoga"
)

type roomRepository struct {
	u   *Unit
	col *mongo.Collection
}

func (r roomRepository) ByID(ctx context.Context, id domainrooms.RoomID) (*domainrooms.Room, error) {
	var doc roomDocument
	if err := r.col.FindOne(r.u.sc(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainrooms.ErrNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate(), nil
}

func (r roomRepository) List(ctx context.Context, f domainrooms.Filter) ([]*domainrooms.Room, error) {
	filter := bson.M{}
	if len(f.IDs) > 0 {
		ids := make([]string, len(f.IDs))
		for i, id := range f.IDs {
			ids[i] = string(id)
		}
		filter["_id"] = bson.M{"$in": ids}
	}
	if f.MinCapacity > 0 {
		filter["capacity"] = bson.M{"$gte": f.MinCapacity}
	}
	if f.AvailableOnly {
		filter["available"] = true
	}
	cur, err := r.col.Find(r.u.sc(ctx), filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, translate(err)
	}
	var docs []roomDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	out := make([]*domainrooms.Room, len(docs))
	for i, d := range docs {
		out[i] = d.toAggregate()
	}
	return out, nil
}

func (r roomRepository) Save(ctx context.Context, room *domainrooms.Room) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newRoomDocument(room)
	doc.Version = room.Version + 1
	res, err := r.col.UpdateOne(r.u.sc(ctx),
		bson.M{"_id": doc.ID, "version": room.Version},
		bson.M{"$set": doc},
		options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainrooms.ErrConcurrentUpdate
		}
		return translate(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainrooms.ErrConcurrentUpdate
	}
	room.Version = doc.Version
	return nil
}

// Guard bumps a per-room counter. Two transactions guarding the same room
// write the same document, so the later one fails with a write conflict.
func (r roomRepository) Guard(ctx context.Context, id domainrooms.RoomID) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	res, err := r.col.UpdateOne(r.u.sc(ctx), bson.M{"_id": string(id)}, bson.M{"$inc": bson.M{"reservation_seq": 1}})
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return domainrooms.ErrNotFound
	}
	return nil
}

type serviceRepository struct {
	u   *Unit
	col *mongo.Collection
}

func (r serviceRepository) ByID(ctx context.Context, id domaincatalog.ServiceID) (*domaincatalog.Service, error) {
	return r.findOne(ctx, bson.M{"_id": string(id)}, nil)
}

func (r serviceRepository) ActiveByCategory(ctx context.Context, category string) (*domaincatalog.Service, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "_id", Value: 1}})
	return r.findOne(ctx, bson.M{"category": category, "active": true}, opts)
}

func (r serviceRepository) findOne(ctx context.Context, filter bson.M, opts *options.FindOneOptions) (*domaincatalog.Service, error) {
	var doc serviceDocument
	var err error
	if opts != nil {
		err = r.col.FindOne(r.u.sc(ctx), filter, opts).Decode(&doc)
	} else {
		err = r.col.FindOne(r.u.sc(ctx), filter).Decode(&doc)
	}
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domaincatalog.ErrNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate(), nil
}

func (r serviceRepository) Save(ctx context.Context, svc *domaincatalog.Service) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newServiceDocument(svc)
	_, err := r.col.ReplaceOne(r.u.sc(ctx), bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return translate(err)
}

type yogaRepository struct {
	u   *Unit
	col *mongo.Collection
}

func (r yogaRepository) ByID(ctx context.Context, id domainyoga.SessionID) (*domainyoga.Session, error) {
	var doc sessionDocument
	if err := r.col.FindOne(r.u.sc(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainyoga.ErrNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate(), nil
}

func (r yogaRepository) Save(ctx context.Context, sess *domainyoga.Session) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newSessionDocument(sess)
	doc.Version = sess.Version + 1
	_, err := r.col.ReplaceOne(r.u.sc(ctx), bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return translate(err)
	}
	sess.Version = doc.Version
	return nil
}

// ReserveSeats increments booked_seats only while the result stays within
// capacity, so the check and the write are one server-side operation.
func (r yogaRepository) ReserveSeats(ctx context.Context, id domainyoga.SessionID, seats int) error {
	if seats <= 0 {
		return domainyoga.ErrInvalidSeats
	}
	if err := r.u.writable(); err != nil {
		return err
	}
	filter := bson.M{
		"_id": string(id),
		"$expr": bson.M{"$lte": bson.A{
			bson.M{"$add": bson.A{"$booked_seats", seats}},
			"$capacity",
		}},
	}
	update := bson.M{"$inc": bson.M{"booked_seats": seats, "version": 1}}
	res, err := r.col.UpdateOne(r.u.sc(ctx), filter, update)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	if _, err := r.ByID(ctx, id); err != nil {
		return err
	}
	return domainyoga.ErrSessionFull
}

func (r yogaRepository) ReleaseSeats(ctx context.Context, id domainyoga.SessionID, seats int) error {
	if seats <= 0 {
		return domainyoga.ErrInvalidSeats
	}
	if err := r.u.writable(); err != nil {
		return err
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.M{
			"booked_seats": bson.M{"$max": bson.A{0, bson.M{"$subtract": bson.A{"$booked_seats", seats}}}},
			"version":      bson.M{"$add": bson.A{"$version", 1}},
		}}},
	}
	res, err := r.col.UpdateOne(r.u.sc(ctx), bson.M{"_id": string(id)}, pipeline)
	if err != nil {
		return translate(err)
	}
	if res.MatchedCount == 0 {
		return domainyoga.ErrNotFound
	}
	return nil
}

type bookingRepository struct {
	u   *Unit
	col *mongo.Collection
}

func (r bookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDocument
	if err := r.col.FindOne(r.u.sc(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainbooking.ErrNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate(), nil
}

// Save writes the booking only if the stored version still matches.
func (r bookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newBookingDocument(b)
	filter := bson.M{"_id": doc.ID, "version": b.Version}
	doc.Version = b.Version + 1
	res, err := r.col.UpdateOne(r.u.sc(ctx), filter, bson.M{"$set": doc}, options.Update().SetUpsert(true))
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domainbooking.ErrConcurrentUpdate
		}
		return translate(err)
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainbooking.ErrConcurrentUpdate
	}
	b.Version = doc.Version
	return nil
}

func (r bookingRepository) ListByUser(ctx context.Context, userID string) ([]*domainbooking.Booking, error) {
	return r.find(ctx, bson.M{"user_id": userID})
}

// FindOverlapping uses the half-open rule: existing.check_in < q.check_out
// and existing.check_out > q.check_in.
func (r bookingRepository) FindOverlapping(ctx context.Context, q domainbooking.OverlapQuery) ([]*domainbooking.Booking, error) {
	filter := bson.M{
		"check_in":  bson.M{"$lt": q.Range.CheckOut.UTC()},
		"check_out": bson.M{"$gt": q.Range.CheckIn.UTC()},
	}
	if q.RoomID != "" {
		filter["room_id"] = string(q.RoomID)
	}
	if len(q.Statuses) > 0 {
		statuses := make([]string, len(q.Statuses))
		for i, s := range q.Statuses {
			statuses[i] = string(s)
		}
		filter["status"] = bson.M{"$in": statuses}
	}
	return r.find(ctx, filter)
}

func (r bookingRepository) find(ctx context.Context, filter bson.M) ([]*domainbooking.Booking, error) {
	opts := options.Find().SetSort(bson.D{{Key: "check_in", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := r.col.Find(r.u.sc(ctx), filter, opts)
	if err != nil {
		return nil, translate(err)
	}
	var docs []bookingDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, translate(err)
	}
	out := make([]*domainbooking.Booking, len(docs))
	for i, d := range docs {
		out[i] = d.toAggregate()
	}
	return out, nil
}

type userRepository struct {
	u   *Unit
	col *mongo.Collection
}

func (r userRepository) ByID(ctx context.Context, id domainuser.ID) (*domainuser.User, error) {
	var doc userDocument
	if err := r.col.FindOne(r.u.sc(ctx), bson.M{"_id": string(id)}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domainuser.ErrNotFound
		}
		return nil, translate(err)
	}
	return doc.toAggregate(), nil
}

func (r userRepository) Save(ctx context.Context, usr *domainuser.User) error {
	if err := r.u.writable(); err != nil {
		return err
	}
	doc := newUserDocument(usr)
	if doc.UpdatedAt.IsZero() {
		doc.UpdatedAt = time.Now().UTC()
	}
	_, err := r.col.ReplaceOne(r.u.sc(ctx), bson.M{"_id": doc.ID}, doc, options.Replace().SetUpsert(true))
	return translate(err)
}
