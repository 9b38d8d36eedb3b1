// Package legacy copies users, tools and blog posts out of the MongoDB
// collections the marketplace used before the move to Postgres.
package legacy

import (
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// UserDoc is a document in the legacy "users" collection
type UserDoc struct {
	ID        bson.ObjectID `bson:"_id"`
	Email     string        `bson:"email"`
	Username  string        `bson:"username"`
	Name      string        `bson:"name"`
	Bio       string        `bson:"bio"`
	Website   string        `bson:"website"`
	Avatar    string        `bson:"avatar"`
	Role      string        `bson:"role"`
	Banned    bool          `bson:"isBanned"`
	CreatedAt time.Time     `bson:"createdAt"`
}

// ToolDoc is a document in the legacy "tools" collection
type ToolDoc struct {
	ID          bson.ObjectID `bson:"_id"`
	Owner       bson.ObjectID `bson:"owner"`
	Name        string        `bson:"name"`
	Slug        string        `bson:"slug"`
	Tagline     string        `bson:"tagline"`
	Description string        `bson:"description"`
	Website     string        `bson:"website"`
	Category    string        `bson:"category"`
	Tags        []string      `bson:"tags"`
	Logo        string        `bson:"logo"`
	Pricing     string        `bson:"pricing"`
	Status      string        `bson:"status"`
	Upvotes     int           `bson:"upvotes"`
	Views       int64         `bson:"views"`
	CreatedAt   time.Time     `bson:"createdAt"`
}

// BlogDoc is a document in the legacy "blogs" collection
type BlogDoc struct {
	ID          bson.ObjectID `bson:"_id"`
	Author      bson.ObjectID `bson:"author"`
	Title       string        `bson:"title"`
	Slug        string        `bson:"slug"`
	Excerpt     string        `bson:"excerpt"`
	Content     string        `bson:"content"`
	CoverImage  string        `bson:"coverImage"`
	Tags        []string      `bson:"tags"`
	Status      string        `bson:"status"`
	Featured    bool          `bson:"featured"`
	Views       int64         `bson:"views"`
	Likes       int           `bson:"likesCount"`
	PublishedAt *time.Time    `bson:"publishedAt"`
	CreatedAt   time.Time     `bson:"createdAt"`
}
