// mongo реализует storage.ProgressStorage поверх MongoDB:
// один документ на пару (user_id, course_id) с уникальным индексом.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pribylovaa/module-mind/internal/models"
	"github.com/pribylovaa/module-mind/internal/storage"
	"go.mongodb.org/mongo-driver/bson"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	progressCollection = "progress"
	defaultDBName      = "module_mind"
)

// Mongo — тонкий адаптер для подключения и коллекции прогресса.
type Mongo struct {
	client   *mongodriver.Client
	progress *mongodriver.Collection
}

type progressDoc struct {
	UserID           string              `bson:"user_id"`
	CourseID         string              `bson:"course_id"`
	CompletedLessons []string            `bson:"completed_lessons"`
	Checklist        map[string][]string `bson:"checklist"`
	LastLessonID     string              `bson:"last_lesson_id"`
	History          []string            `bson:"history"`
	UpdatedAt        time.Time           `bson:"updated_at"`
}

// New подключается к MongoDB, проверяет соединение и создаёт индексы.
func New(ctx context.Context, uri string) (*Mongo, error) {
	if uri == "" {
		return nil, fmt.Errorf("mongo: empty uri")
	}

	cli, err := mongodriver.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	if err := cli.Ping(ctx, readpref.Primary()); err != nil {
		_ = cli.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	m := &Mongo{
		client:   cli,
		progress: cli.Database(databaseFromURI(uri)).Collection(progressCollection),
	}

	if err := m.ensureIndexes(ctx); err != nil {
		_ = m.Close(ctx)
		return nil, err
	}

	return m, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// Ping проверяет доступность MongoDB (используется /healthz).
func (m *Mongo) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

// ensureIndexes — уникальность записи на пару (user_id, course_id).
func (m *Mongo) ensureIndexes(ctx context.Context) error {
	_, err := m.progress.Indexes().CreateOne(ctx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}, {Key: "course_id", Value: 1}},
		Options: options.Index().SetName("user_course_unique").SetUnique(true),
	})
	if err != nil {
		return fmt.Errorf("mongo ensure indexes: %w", err)
	}

	return nil
}

// Progress возвращает прогресс пользователя по курсу.
func (m *Mongo) Progress(ctx context.Context, userID uuid.UUID, courseID string) (*models.Progress, error) {
	const op = "storage.mongo.Progress"

	var doc progressDoc
	err := m.progress.FindOne(ctx, bson.M{"user_id": userID.String(), "course_id": courseID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongodriver.ErrNoDocuments) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	uid, err := uuid.Parse(doc.UserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	p := &models.Progress{
		UserID:           uid,
		CourseID:         doc.CourseID,
		CompletedLessons: doc.CompletedLessons,
		Checklist:        doc.Checklist,
		LastLessonID:     doc.LastLessonID,
		History:          doc.History,
		UpdatedAt:        doc.UpdatedAt.UTC(),
	}
	if p.Checklist == nil {
		p.Checklist = map[string][]string{}
	}

	return p, nil
}

// SaveProgress заменяет документ целиком (upsert).
func (m *Mongo) SaveProgress(ctx context.Context, p *models.Progress) error {
	const op = "storage.mongo.SaveProgress"

	doc := progressDoc{
		UserID:           p.UserID.String(),
		CourseID:         p.CourseID,
		CompletedLessons: p.CompletedLessons,
		Checklist:        p.Checklist,
		LastLessonID:     p.LastLessonID,
		History:          p.History,
		UpdatedAt:        p.UpdatedAt.UTC(),
	}

	filter := bson.M{"user_id": doc.UserID, "course_id": doc.CourseID}
	_, err := m.progress.ReplaceOne(ctx, filter, doc, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// databaseFromURI извлекает имя БД из пути URI или возвращает значение по умолчанию.
func databaseFromURI(uri string) string {
	u, err := url.Parse(uri)
	if err == nil {
		if name := strings.Trim(u.Path, "/"); name != "" {
			return name
		}
	}

	return defaultDBName
}

var _ storage.ProgressStorage = (*Mongo)(nil)
