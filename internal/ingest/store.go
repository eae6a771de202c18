package ingest

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/RecoveryAshes/IEAHarvest/internal/models"
	"github.com/RecoveryAshes/IEAHarvest/internal/utils"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS subjects (
	subject_id   TEXT PRIMARY KEY,
	last_updated TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS subject_slots (
	subject_id   TEXT NOT NULL REFERENCES subjects(subject_id),
	slot         TEXT NOT NULL,
	row_count    INTEGER NOT NULL,
	last_updated TEXT NOT NULL,
	PRIMARY KEY (subject_id, slot)
);
CREATE TABLE IF NOT EXISTS records (
	subject_id TEXT NOT NULL REFERENCES subjects(subject_id),
	slot       TEXT NOT NULL,
	series     TEXT NOT NULL,
	year       INTEGER NOT NULL,
	value      REAL,
	units      TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (subject_id, slot, series, year)
);
`

// Row 数据文件中的一行
type Row struct {
	Series string
	Year   int
	Value  *float64 // 空值或无法解析时为nil
	Units  string
}

// Stats 目录导入统计
type Stats struct {
	Files    int
	Subjects int
	Records  int
	Skipped  int
}

// Totals 数据库汇总
type Totals struct {
	Subjects int
	Records  int
	PerSlot  map[models.Slot]int
}

// Store SQLite数据存储
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open 打开(必要时创建)数据库并建表
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("创建数据库目录失败: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("打开数据库失败: %w", err)
	}
	// 单连接,保证pragma对所有语句生效
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=10000",
		"PRAGMA synchronous=NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("设置pragma失败 (%s): %w", pragma, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("初始化表结构失败: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close 关闭数据库
func (s *Store) Close() error {
	return s.db.Close()
}

// ParseRows 解析数据文件内容
// 跳过表头; 少于4列或年份无效的行被跳过
func ParseRows(content string) ([]Row, error) {
	reader := csv.NewReader(strings.NewReader(content))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("解析CSV失败: %w", err)
	}
	if len(records) < 2 {
		return nil, nil
	}

	rows := make([]Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 4 {
			continue
		}

		series := strings.Trim(rec[0], ` "`)
		year, err := strconv.Atoi(strings.TrimSpace(rec[2]))
		if series == "" || err != nil {
			continue
		}

		row := Row{
			Series: series,
			Year:   year,
			Units:  strings.TrimSpace(rec[3]),
		}
		if raw := strings.TrimSpace(rec[1]); raw != "" {
			if v, err := strconv.ParseFloat(raw, 64); err == nil {
				row.Value = &v
			}
		}
		rows = append(rows, row)
	}

	return rows, nil
}

// Upsert 写入一个对象某个槽位的数据行
// 以(对象, 槽位, 系列, 年份)为键,重复导入结果不变
func (s *Store) Upsert(ctx context.Context, subject models.Subject, slot models.Slot, rows []Row) (int, error) {
	if err := models.ValidateSubject(subject); err != nil {
		return 0, err
	}
	if !slot.IsValid() {
		return 0, fmt.Errorf("无效的槽位: %s", slot)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("开启事务失败: %w", err)
	}
	defer tx.Rollback()

	stamp := s.now().UTC().Format(time.RFC3339)

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subjects (subject_id, last_updated) VALUES (?, ?)
		ON CONFLICT(subject_id) DO UPDATE SET last_updated = excluded.last_updated`,
		subject, stamp); err != nil {
		return 0, fmt.Errorf("写入对象失败: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (subject_id, slot, series, year, value, units) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(subject_id, slot, series, year) DO UPDATE SET value = excluded.value, units = excluded.units`)
	if err != nil {
		return 0, fmt.Errorf("准备语句失败: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		var value any
		if row.Value != nil {
			value = *row.Value
		}
		if _, err := stmt.ExecContext(ctx, subject, string(slot), row.Series, row.Year, value, row.Units); err != nil {
			return 0, fmt.Errorf("写入数据行失败 (%s/%d): %w", row.Series, row.Year, err)
		}
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE subject_id = ? AND slot = ?`, subject, string(slot)).Scan(&count); err != nil {
		return 0, fmt.Errorf("统计数据行失败: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO subject_slots (subject_id, slot, row_count, last_updated) VALUES (?, ?, ?, ?)
		ON CONFLICT(subject_id, slot) DO UPDATE SET row_count = excluded.row_count, last_updated = excluded.last_updated`,
		subject, string(slot), count, stamp); err != nil {
		return 0, fmt.Errorf("更新槽位标记失败: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("提交事务失败: %w", err)
	}
	return len(rows), nil
}

// IngestDir 导入采集输出目录 <dir>/<subject>/<slot>.csv
// 非对象目录和非槽位文件被忽略
func (s *Store) IngestDir(ctx context.Context, dir string) (*Stats, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("读取目录失败: %w", err)
	}

	stats := &Stats{}
	for _, entry := range entries {
		if !entry.IsDir() || models.ValidateSubject(entry.Name()) != nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		subject := entry.Name()
		files, err := os.ReadDir(filepath.Join(dir, subject))
		if err != nil {
			return stats, fmt.Errorf("读取对象目录失败 %s: %w", subject, err)
		}

		loaded := false
		for _, f := range files {
			slot, ok := models.SlotFromFileName(f.Name())
			if f.IsDir() || !ok {
				continue
			}
			stats.Files++

			data, err := os.ReadFile(filepath.Join(dir, subject, f.Name()))
			if err != nil {
				return stats, fmt.Errorf("读取文件失败: %w", err)
			}
			rows, err := ParseRows(string(data))
			if err != nil || len(rows) == 0 {
				utils.Warnf("    ✗ %s/%s: 没有可导入的数据", subject, f.Name())
				stats.Skipped++
				continue
			}

			n, err := s.Upsert(ctx, subject, slot, rows)
			if err != nil {
				return stats, err
			}
			stats.Records += n
			loaded = true
			utils.Debugf("    ✓ %s/%s: %d 条记录", subject, slot, n)
		}

		if loaded {
			stats.Subjects++
			utils.Infof("✓ %s", subject)
		}
	}

	return stats, nil
}

// Totals 统计数据库总量
func (s *Store) Totals(ctx context.Context) (*Totals, error) {
	totals := &Totals{PerSlot: make(map[models.Slot]int)}

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM subjects`).Scan(&totals.Subjects); err != nil {
		return nil, fmt.Errorf("统计对象失败: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT slot, COUNT(*) FROM records GROUP BY slot`)
	if err != nil {
		return nil, fmt.Errorf("统计数据行失败: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var slot string
		var n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, err
		}
		totals.PerSlot[models.Slot(slot)] = n
		totals.Records += n
	}
	return totals, rows.Err()
}

// SlotFlags 返回对象已导入的槽位及行数
func (s *Store) SlotFlags(ctx context.Context, subject models.Subject) (map[models.Slot]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slot, row_count FROM subject_slots WHERE subject_id = ?`, subject)
	if err != nil {
		return nil, fmt.Errorf("查询槽位失败: %w", err)
	}
	defer rows.Close()

	flags := make(map[models.Slot]int)
	for rows.Next() {
		var slot string
		var n int
		if err := rows.Scan(&slot, &n); err != nil {
			return nil, err
		}
		flags[models.Slot(slot)] = n
	}
	return flags, rows.Err()
}
