package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	roomsCollection       = "rooms"
	servicesCollection    = "services"
	yogaCollection        = "yoga_sessions"
	bookingsCollection    = "bookings"
	usersCollection       = "users"
	idempotencyCollection = "app_idempotency"
)

type Client struct {
	DB *mongo.Database
}

func New(uri, database string) (*Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	opts := options.Client().ApplyURI(uri).SetRetryWrites(true)
	m, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, err
	}
	return &Client{DB: m.Database(database)}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.DB.Client().Ping(ctx, readpref.Primary())
}

func (c *Client) Close(ctx context.Context) error {
	return c.DB.Client().Disconnect(ctx)
}

// EnsureIndexes creates the indexes the repositories query by. Transactions
// cannot create collections implicitly on older servers, so callers run this
// once at startup.
func (c *Client) EnsureIndexes(ctx context.Context) error {
	specs := map[string][]mongo.IndexModel{
		bookingsCollection: {
			{Keys: bson.D{{Key: "room_id", Value: 1}, {Key: "status", Value: 1}, {Key: "check_in", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
		servicesCollection: {
			{Keys: bson.D{{Key: "category", Value: 1}, {Key: "active", Value: 1}}},
		},
		roomsCollection: {
			{Keys: bson.D{{Key: "available", Value: 1}, {Key: "capacity", Value: 1}}},
		},
	}
	for name, models := range specs {
		if _, err := c.DB.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return err
		}
	}
	return nil
}
