package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/glebarez/sqlite"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lamgaraproperties/lamgara-web/internal/cryptoutil"
	"github.com/lamgaraproperties/lamgara-web/internal/log"
	"github.com/lamgaraproperties/lamgara-web/internal/otelx"
	"github.com/lamgaraproperties/lamgara-web/internal/webassets"
	"github.com/lamgaraproperties/lamgara-web/internal/xerrors"
)

// ErrInvalidDocument is returned by Save for bytes that are not JSON.
var ErrInvalidDocument = errors.New("content: document is not valid JSON")

const contentRowID = 1

// schema matches databases created by earlier releases of the site.
const schema = `CREATE TABLE IF NOT EXISTS site_content (
  id INTEGER PRIMARY KEY CHECK (id = 1),
  data TEXT NOT NULL,
  updated_at TEXT NOT NULL
)`

type siteContent struct {
	ID    int            `gorm:"column:id;primaryKey;autoIncrement:false"`
	Data  datatypes.JSON `gorm:"column:data;not null"`
	Stamp string         `gorm:"column:updated_at;not null"`
}

func (siteContent) TableName() string { return "site_content" }

type Store struct {
	db       *gorm.DB
	logger   log.Logger
	defaults []byte
	now      func() time.Time
	tracer   trace.Tracer

	// last read or written snapshot, for response headers
	last atomic.Pointer[Snapshot]
}

type Option func(*Store)

func WithLogger(l log.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDefaults overrides the document seeded on first boot.
func WithDefaults(doc []byte) Option {
	return func(s *Store) { s.defaults = doc }
}

// Open opens or creates the database at path, creating its directory.
func Open(ctx context.Context, path string, opts ...Option) (*Store, error) {
	s := &Store{
		logger: log.Nop(),
		now:    time.Now,
		tracer: otelx.Tracer("content"),
	}
	for _, o := range opts {
		o(s)
	}
	if s.defaults == nil {
		s.defaults = webassets.DefaultContent()
	}
	if !json.Valid(s.defaults) {
		return nil, xerrors.New("content: default document is not valid JSON")
	}

	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, xerrors.Wrapf(err, "content: create db dir %s", dir)
		}
	}

	db, err := gorm.Open(sqlite.Open(dsn(path)), &gorm.Config{
		Logger: newGormLogger(s.logger, 200*time.Millisecond),
	})
	if err != nil {
		return nil, xerrors.Wrapf(err, "content: open sqlite %s", path)
	}
	s.db = db

	sqlDB, err := db.DB()
	if err != nil {
		return nil, xerrors.Wrap(err, "content: sql handle")
	}
	sqlDB.SetMaxOpenConns(4)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, xerrors.Wrap(err, "content: ping")
	}
	return s, nil
}

// dsn applies the pragmas to every pooled connection.
func dsn(path string) string {
	q := url.Values{}
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "synchronous(NORMAL)")
	return path + "?" + q.Encode()
}

// Initialize creates the table and seeds the default document when row 1 is
// absent. Safe to call on every boot.
func (s *Store) Initialize(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "content.initialize")
	defer span.End()

	if err := s.db.WithContext(ctx).Exec(schema).Error; err != nil {
		return spanErr(span, xerrors.Wrap(err, "content: create table"))
	}

	row := siteContent{ID: contentRowID, Data: datatypes.JSON(compact(s.defaults)), Stamp: Stamp(s.now())}
	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&row)
	if res.Error != nil {
		return spanErr(span, xerrors.Wrap(res.Error, "content: seed default"))
	}
	seeded := res.RowsAffected > 0
	span.SetAttributes(attribute.Bool("content.seeded", seeded))
	if seeded {
		s.logger.Info(ctx, "seeded default content", "updated_at", row.Stamp)
	}
	return nil
}

// Get returns the stored document, or the built-in default with an empty
// UpdatedAt when row 1 is absent.
func (s *Store) Get(ctx context.Context) (Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "content.get")
	defer span.End()

	var row siteContent
	err := s.db.WithContext(ctx).Where("id = ?", contentRowID).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		span.SetAttributes(attribute.Bool("content.default", true))
		return newSnapshot(s.defaults, ""), nil
	}
	if err != nil {
		return Snapshot{}, spanErr(span, xerrors.Wrap(err, "content: read"))
	}

	snap := newSnapshot(row.Data, row.Stamp)
	s.last.Store(&snap)
	span.SetAttributes(attribute.String("content.updated_at", snap.UpdatedAt))
	return snap, nil
}

// Save replaces the whole document and returns the stored snapshot.
func (s *Store) Save(ctx context.Context, doc []byte) (Snapshot, error) {
	ctx, span := s.tracer.Start(ctx, "content.save")
	defer span.End()

	if !json.Valid(doc) {
		return Snapshot{}, spanErr(span, ErrInvalidDocument)
	}

	row := siteContent{ID: contentRowID, Data: datatypes.JSON(compact(doc)), Stamp: Stamp(s.now())}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return Snapshot{}, spanErr(span, xerrors.Wrap(err, "content: write"))
	}

	snap := newSnapshot(row.Data, row.Stamp)
	s.last.Store(&snap)
	span.SetAttributes(
		attribute.String("content.updated_at", snap.UpdatedAt),
		attribute.Int("content.bytes", len(snap.Document)),
	)
	return snap, nil
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// ContentVersion is the stamp of the last snapshot read or written.
func (s *Store) ContentVersion() string {
	if snap := s.last.Load(); snap != nil {
		return snap.UpdatedAt
	}
	return ""
}

// ContentHash is the digest of the last snapshot read or written.
func (s *Store) ContentHash() string {
	if snap := s.last.Load(); snap != nil {
		return snap.Hash
	}
	return ""
}

func newSnapshot(doc []byte, stamp string) Snapshot {
	cp := make([]byte, len(doc))
	copy(cp, doc)
	return Snapshot{Document: cp, UpdatedAt: stamp, Hash: cryptoutil.SHA256Hex(cp)}
}

func compact(doc []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, doc); err != nil {
		return doc
	}
	return buf.Bytes()
}

func spanErr(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}
