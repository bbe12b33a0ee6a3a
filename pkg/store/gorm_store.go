package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"quoteshare/pkg/domain"
)

const migrateLockID int64 = 73217322

// GormStore implements Store using GORM over Postgres or SQLite.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB named by dsn and runs auto-migrations.
// postgres:// and key=value DSNs use Postgres; sqlite:// DSNs use SQLite.
func NewGormStore(dsn string) (*GormStore, error) {
	dialector, isPostgres, memory, err := dialectorFor(dsn)
	if err != nil {
		return nil, err
	}
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if memory {
		// every connection to :memory: is a separate database
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("get sql db: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	migrate := func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(&UserModel{}, &QuoteModel{}, &ReactionModel{}); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}
	if isPostgres {
		err = withMigrationLock(db, migrate)
	} else {
		err = migrate(db)
	}
	if err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func dialectorFor(dsn string) (gorm.Dialector, bool, bool, error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case dsn == "":
		return nil, false, false, errors.New("database URL required")
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"), strings.Contains(dsn, "host="):
		return postgres.Open(dsn), true, false, nil
	case strings.HasPrefix(dsn, "sqlite:"):
		path := strings.TrimPrefix(dsn, "sqlite:///")
		if path == dsn {
			path = strings.TrimPrefix(dsn, "sqlite://")
		}
		memory := path == "" || path == ":memory:"
		if memory {
			path = "file::memory:"
		}
		sep := "?"
		if strings.Contains(path, "?") {
			sep = "&"
		}
		params := "_pragma=foreign_keys(1)"
		if !memory {
			// writers queue on the file lock instead of failing with SQLITE_BUSY
			params += "&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_txlock=immediate"
		}
		return sqlite.Open(path + sep + params), false, memory, nil
	default:
		return nil, false, false, fmt.Errorf("unsupported database URL scheme: %q", dsn)
	}
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// CreateUser inserts a user and returns it with its assigned ID.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) (domain.User, error) {
	model := userToModel(u)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		if isUniqueViolation(err) {
			return domain.User{}, ErrDuplicate
		}
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// HasUsername checks if username exists.
func (s *GormStore) HasUsername(ctx context.Context, username string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Where("username = ?", username).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// HasUserEmail checks if email exists.
func (s *GormStore) HasUserEmail(ctx context.Context, email string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&UserModel{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// GetUserByLogin looks up a user whose username equals identifier or whose
// email equals the lower-cased identifier.
func (s *GormStore) GetUserByLogin(ctx context.Context, identifier string) (domain.User, bool, error) {
	var model UserModel
	err := s.db.WithContext(ctx).
		Where("username = ? OR email = ?", identifier, strings.ToLower(identifier)).
		Order("id ASC").
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(ctx context.Context, id uint64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// SetLastLogin records a successful login.
func (s *GormStore) SetLastLogin(ctx context.Context, id uint64, at time.Time) error {
	return s.db.WithContext(ctx).Model(&UserModel{}).
		Where("id = ?", id).
		Update("last_login_at", at.UTC()).Error
}

// DeleteUser removes a user with their quotes and every reaction touching them.
func (s *GormStore) DeleteUser(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", id).Delete(&ReactionModel{}).Error; err != nil {
			return err
		}
		ownQuotes := tx.Model(&QuoteModel{}).Select("id").Where("owner_id = ?", id)
		if err := tx.Where("quote_id IN (?)", ownQuotes).Delete(&ReactionModel{}).Error; err != nil {
			return err
		}
		if err := tx.Where("owner_id = ?", id).Delete(&QuoteModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&UserModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// CreateQuote inserts a quote and returns it with its assigned ID.
func (s *GormStore) CreateQuote(ctx context.Context, q domain.Quote) (domain.Quote, error) {
	model := quoteToModel(q)
	if err := s.db.WithContext(ctx).Omit(clause.Associations).Create(&model).Error; err != nil {
		return domain.Quote{}, err
	}
	created := quoteFromModel(model)
	created.OwnerName = q.OwnerName
	return created, nil
}

// GetQuote retrieves a quote with its owner's username.
func (s *GormStore) GetQuote(ctx context.Context, id uint64) (domain.Quote, bool, error) {
	var rows []quoteRow
	if err := s.quoteQuery(ctx).Where("quotes.id = ?", id).Limit(1).Scan(&rows).Error; err != nil {
		return domain.Quote{}, false, err
	}
	if len(rows) == 0 {
		return domain.Quote{}, false, nil
	}
	return rows[0].toDomain(), true, nil
}

// UpdateQuote overwrites the editable fields and bumps updated_at.
func (s *GormStore) UpdateQuote(ctx context.Context, q domain.Quote) error {
	res := s.db.WithContext(ctx).Model(&QuoteModel{}).
		Where("id = ?", q.ID).
		Updates(map[string]any{
			"content":     q.Content,
			"source":      q.Source,
			"author":      q.Author,
			"explanation": q.Explanation,
			"updated_at":  q.UpdatedAt.UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteQuote removes a quote and its reactions.
func (s *GormStore) DeleteQuote(ctx context.Context, id uint64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("quote_id = ?", id).Delete(&ReactionModel{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&QuoteModel{}, "id = ?", id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// ListQuotes returns one window of the filtered feed, newest first. Ties on
// created_at are broken by id so paging is deterministic.
func (s *GormStore) ListQuotes(ctx context.Context, filter domain.QuoteFilter, offset, limit int) ([]domain.Quote, error) {
	if limit <= 0 {
		return []domain.Quote{}, nil
	}
	var rows []quoteRow
	err := applyQuoteFilter(s.quoteQuery(ctx), filter).
		Order("quotes.created_at DESC").
		Order("quotes.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

// CountQuotes counts the whole filtered set.
func (s *GormStore) CountQuotes(ctx context.Context, filter domain.QuoteFilter) (int64, error) {
	var count int64
	if err := applyQuoteFilter(s.db.WithContext(ctx).Model(&QuoteModel{}), filter).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// ToggleReaction removes the (user, quote, type) row when present and adds it
// otherwise. The delete runs first so the transaction holds the write lock
// before it reads. An insert racing an identical concurrent insert is absorbed
// by the unique index and still reports added.
func (s *GormStore) ToggleReaction(ctx context.Context, userID, quoteID uint64, reaction domain.ReactionType) (domain.ReactionState, error) {
	var state domain.ReactionState
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND quote_id = ? AND reaction_type = ?", userID, quoteID, string(reaction)).
			Delete(&ReactionModel{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			state = domain.ReactionRemoved
			return nil
		}
		var quotes int64
		if err := tx.Model(&QuoteModel{}).Where("id = ?", quoteID).Count(&quotes).Error; err != nil {
			return err
		}
		if quotes == 0 {
			return ErrNotFound
		}
		model := ReactionModel{
			UserID:       userID,
			QuoteID:      quoteID,
			ReactionType: string(reaction),
			CreatedAt:    time.Now().UTC(),
		}
		if err := tx.Omit(clause.Associations).Clauses(clause.OnConflict{DoNothing: true}).Create(&model).Error; err != nil {
			return err
		}
		state = domain.ReactionAdded
		return nil
	})
	if err != nil {
		return "", err
	}
	return state, nil
}

// ListUserReactions returns the user's reactions on the given quotes.
func (s *GormStore) ListUserReactions(ctx context.Context, userID uint64, quoteIDs []uint64) ([]domain.Reaction, error) {
	if len(quoteIDs) == 0 {
		return []domain.Reaction{}, nil
	}
	var models []ReactionModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND quote_id IN ?", userID, quoteIDs).
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Reaction, 0, len(models))
	for _, m := range models {
		res = append(res, reactionFromModel(m))
	}
	return res, nil
}

// ListReactedQuotes returns quotes the user reacted to with the given type,
// most recent reaction first.
func (s *GormStore) ListReactedQuotes(ctx context.Context, userID uint64, reaction domain.ReactionType, offset, limit int) ([]domain.Quote, error) {
	if limit <= 0 {
		return []domain.Quote{}, nil
	}
	var rows []quoteRow
	err := s.quoteQuery(ctx).
		Joins("JOIN user_quote_reactions r ON r.quote_id = quotes.id").
		Where("r.user_id = ? AND r.reaction_type = ?", userID, string(reaction)).
		Order("r.created_at DESC").
		Order("r.id DESC").
		Offset(offset).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rowsToDomain(rows), nil
}

// CountReactedQuotes counts the user's reactions of one type.
func (s *GormStore) CountReactedQuotes(ctx context.Context, userID uint64, reaction domain.ReactionType) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&ReactionModel{}).
		Where("user_id = ? AND reaction_type = ?", userID, string(reaction)).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (s *GormStore) quoteQuery(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).
		Model(&QuoteModel{}).
		Select("quotes.*, users.username AS owner_name").
		Joins("JOIN users ON users.id = quotes.owner_id")
}

func applyQuoteFilter(tx *gorm.DB, filter domain.QuoteFilter) *gorm.DB {
	like := "LOWER(%s) LIKE LOWER(?) ESCAPE '\\'"
	if tx.Dialector.Name() == "postgres" {
		like = "%s ILIKE ? ESCAPE '\\'"
	}
	if keyword := strings.TrimSpace(filter.Keyword); keyword != "" {
		pattern := containsPattern(keyword)
		tx = tx.Where(
			"("+fmt.Sprintf(like, "quotes.content")+" OR "+fmt.Sprintf(like, "COALESCE(quotes.explanation, '')")+")",
			pattern, pattern,
		)
	}
	if author := strings.TrimSpace(filter.Author); author != "" {
		tx = tx.Where(fmt.Sprintf(like, "COALESCE(quotes.author, '')"), containsPattern(author))
	}
	if source := strings.TrimSpace(filter.Source); source != "" {
		tx = tx.Where(fmt.Sprintf(like, "COALESCE(quotes.source, '')"), containsPattern(source))
	}
	if filter.OwnerID != 0 {
		tx = tx.Where("quotes.owner_id = ?", filter.OwnerID)
	}
	return tx
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching value anywhere, with LIKE
// metacharacters in value taken literally. Case folding happens in SQL so
// pattern and column are folded by the same rules.
func containsPattern(value string) string {
	return "%" + likeEscaper.Replace(value) + "%"
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "duplicate key")
}

type quoteRow struct {
	QuoteModel
	OwnerName string
}

func (r quoteRow) toDomain() domain.Quote {
	q := quoteFromModel(r.QuoteModel)
	q.OwnerName = r.OwnerName
	return q
}

func rowsToDomain(rows []quoteRow) []domain.Quote {
	res := make([]domain.Quote, 0, len(rows))
	for _, r := range rows {
		res = append(res, r.toDomain())
	}
	return res
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		IsActive:     u.IsActive,
		CreatedAt:    u.CreatedAt,
		LastLoginAt:  u.LastLoginAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
		LastLoginAt:  m.LastLoginAt,
	}
}

func quoteToModel(q domain.Quote) QuoteModel {
	return QuoteModel{
		ID:          q.ID,
		OwnerID:     q.OwnerID,
		Content:     q.Content,
		Source:      q.Source,
		Author:      q.Author,
		Explanation: q.Explanation,
		CreatedAt:   q.CreatedAt,
		UpdatedAt:   q.UpdatedAt,
	}
}

func quoteFromModel(m QuoteModel) domain.Quote {
	return domain.Quote{
		ID:          m.ID,
		OwnerID:     m.OwnerID,
		Content:     m.Content,
		Source:      m.Source,
		Author:      m.Author,
		Explanation: m.Explanation,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func reactionFromModel(m ReactionModel) domain.Reaction {
	return domain.Reaction{
		ID:        m.ID,
		UserID:    m.UserID,
		QuoteID:   m.QuoteID,
		Type:      domain.ReactionType(m.ReactionType),
		CreatedAt: m.CreatedAt,
	}
}
