package mysql

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	xerrors "Creator-SDK/internal/errors"
)

// 活动类型。
const (
	KindTokenCreated     = "token_created"
	KindFeesClaimed      = "fees_claimed"
	KindFundsDistributed = "funds_distributed"
)

const memoryActivityLimit = 512

// ActivityRecord 表示一次对外操作（发币、领取手续费、分发资金）的落库结构。
type ActivityRecord struct {
	ID         int64    `json:"id"`
	Kind       string   `json:"kind"`
	Ledger     string   `json:"ledger,omitempty"`
	Reference  string   `json:"reference,omitempty"`
	Signatures []string `json:"signatures,omitempty"`
	Amount     float64  `json:"amount"`
	Success    bool     `json:"success"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  int64    `json:"created_at"`
}

// ActivityRepository 抽象活动记录的持久化接口。
type ActivityRepository interface {
	Save(ctx context.Context, record *ActivityRecord) error
	ListLatest(ctx context.Context, limit int) ([]ActivityRecord, error)
	Close() error
}

// MemoryActivityRepository 在内存中保留最近的记录，并以 JSON lines 追加到数据目录。
type MemoryActivityRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []ActivityRecord
	nextID   int64
}

// NewMemoryActivityRepository 创建内存活动仓库，并从 activity.log 恢复历史。
func NewMemoryActivityRepository(dataDir string) (*MemoryActivityRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "创建数据目录失败")
	}
	repo := &MemoryActivityRepository{dataFile: filepath.Join(dataDir, "activity.log"), nextID: 1}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Save 分配 ID 并以追加写的方式记录。
func (m *MemoryActivityRepository) Save(_ context.Context, record *ActivityRecord) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "活动记录不能为空")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *record
	stored.ID = m.nextID

	encoded, err := json.Marshal(stored)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化活动记录失败")
	}

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "打开活动日志失败")
	}
	defer file.Close()

	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入活动日志失败")
	}

	m.nextID++
	record.ID = stored.ID
	m.records = append([]ActivityRecord{stored}, m.records...)
	if len(m.records) > memoryActivityLimit {
		m.records = m.records[:memoryActivityLimit]
	}
	return nil
}

// ListLatest 返回最近的记录，按写入时间倒序排列。
func (m *MemoryActivityRepository) ListLatest(_ context.Context, limit int) ([]ActivityRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]ActivityRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

// Close 对内存仓库无操作。
func (m *MemoryActivityRepository) Close() error { return nil }

func (m *MemoryActivityRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "读取活动日志失败")
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	var restored []ActivityRecord
	for scanner.Scan() {
		var record ActivityRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		if record.ID >= m.nextID {
			m.nextID = record.ID + 1
		}
		restored = append([]ActivityRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析活动日志失败")
	}

	if len(restored) > memoryActivityLimit {
		restored = restored[:memoryActivityLimit]
	}
	m.records = restored
	return nil
}

// SQLActivityRepository 使用 MySQL 存储活动记录。
type SQLActivityRepository struct {
	db *sql.DB
}

// NewSQLActivityRepository 创建连接池并执行嵌入的迁移。
func NewSQLActivityRepository(ctx context.Context, cfg Config) (*SQLActivityRepository, error) {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := runMigrations(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLActivityRepository{db: db}, nil
}

const insertActivitySQL = `INSERT INTO creator_activity
    (kind, ledger, reference, signatures, amount, success, error_message, created_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?)`

const listActivitySQL = `SELECT id, kind, ledger, reference, signatures, amount, success, error_message, created_at
    FROM creator_activity ORDER BY id DESC LIMIT ?`

// Save 写入一条记录并回填自增 ID。
func (s *SQLActivityRepository) Save(ctx context.Context, record *ActivityRecord) error {
	if record == nil {
		return xerrors.New(xerrors.CodeInvalidArgument, "活动记录不能为空")
	}
	signatures, err := json.Marshal(nonNil(record.Signatures))
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "序列化签名列表失败")
	}

	res, err := s.db.ExecContext(ctx, insertActivitySQL,
		record.Kind,
		record.Ledger,
		record.Reference,
		string(signatures),
		record.Amount,
		record.Success,
		record.Error,
		record.CreatedAt,
	)
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "写入 MySQL 失败")
	}
	id, err := res.LastInsertId()
	if err != nil {
		return xerrors.Wrap(xerrors.CodeStorageFailure, err, "获取活动记录 ID 失败")
	}
	record.ID = id
	return nil
}

// ListLatest 查询最近的若干条记录。
func (s *SQLActivityRepository) ListLatest(ctx context.Context, limit int) ([]ActivityRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, listActivitySQL, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询活动记录失败")
	}
	defer rows.Close()

	var records []ActivityRecord
	for rows.Next() {
		var (
			record     ActivityRecord
			signatures string
			errMessage sql.NullString
		)
		if err := rows.Scan(&record.ID, &record.Kind, &record.Ledger, &record.Reference, &signatures, &record.Amount, &record.Success, &errMessage, &record.CreatedAt); err != nil {
			return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析活动记录失败")
		}
		if signatures != "" {
			if err := json.Unmarshal([]byte(signatures), &record.Signatures); err != nil {
				return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "解析签名列表失败")
			}
		}
		record.Error = errMessage.String
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "遍历活动记录失败")
	}
	return records, nil
}

// Close 关闭底层数据库连接。
func (s *SQLActivityRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

var (
	_ ActivityRepository = (*MemoryActivityRepository)(nil)
	_ ActivityRepository = (*SQLActivityRepository)(nil)
)
