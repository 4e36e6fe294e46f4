package audit

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	logging "github.com/ipfs/go-log/v2"
	_ "github.com/mattn/go-sqlite3"

	"github.com/spacedatanetwork/sdn-keep/internal/keep"
)

var log = logging.Logger("sdn-audit")

// Event types
const (
	EventTypeEvaluate = "keep.evaluate"
	EventTypeOverride = "keep.override"
	EventTypeDump     = "keep.dump"
	EventTypeClear    = "keep.clear"
	EventTypeConfig   = "keep.config"
)

// Severity levels
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Errors
var (
	ErrLogTampered   = errors.New("audit log tampering detected")
	ErrEntryNotFound = errors.New("log entry not found")
)

const (
	// Database file
	AuditDBFile = "audit.db"

	// Genesis block hash (used for first entry)
	GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"
)

// Entry represents a single audit log entry.
type Entry struct {
	ID           int64     `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	EventType    string    `json:"event_type"`
	Severity     string    `json:"severity"`
	TargetID     string    `json:"target_id,omitempty"` // Peer uid
	Description  string    `json:"description"`
	Details      string    `json:"details,omitempty"` // JSON encoded details
	PreviousHash string    `json:"previous_hash"`
	EntryHash    string    `json:"entry_hash"`
}

// Logger provides tamper-evident audit logging.
type Logger struct {
	db       *sql.DB
	dbPath   string
	lastHash string
	lastID   int64
	mu       sync.Mutex
}

// NewLogger creates a new audit logger storing its database in basePath.
func NewLogger(basePath string) (*Logger, error) {
	if err := os.MkdirAll(basePath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create audit directory: %w", err)
	}

	dbPath := filepath.Join(basePath, AuditDBFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open audit database: %w", err)
	}

	l := &Logger{
		db:       db,
		dbPath:   dbPath,
		lastHash: GenesisHash,
	}

	if err := l.initDB(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize audit database: %w", err)
	}

	if err := l.loadLastHash(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load last audit hash: %w", err)
	}

	return l, nil
}

// initDB creates the audit log table.
func (l *Logger) initDB() error {
	_, err := l.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			timestamp INTEGER NOT NULL,
			event_type TEXT NOT NULL,
			severity TEXT NOT NULL,
			target_id TEXT,
			description TEXT NOT NULL,
			details TEXT,
			previous_hash TEXT NOT NULL,
			entry_hash TEXT NOT NULL UNIQUE
		)
	`)
	if err != nil {
		return err
	}

	_, err = l.db.Exec(`CREATE INDEX IF NOT EXISTS idx_audit_target ON audit_log(target_id)`)
	return err
}

// loadLastHash loads the hash of the most recent log entry.
func (l *Logger) loadLastHash() error {
	var hash string
	var id int64
	err := l.db.QueryRow(`
		SELECT id, entry_hash FROM audit_log ORDER BY id DESC LIMIT 1
	`).Scan(&id, &hash)

	if err == sql.ErrNoRows {
		l.lastHash = GenesisHash
		l.lastID = 0
		return nil
	} else if err != nil {
		return err
	}

	l.lastHash = hash
	l.lastID = id
	return nil
}

// Log appends an entry to the chain.
func (l *Logger) Log(eventType, severity, targetID, description string, details map[string]interface{}) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	var detailsJSON string
	if details != nil {
		data, err := json.Marshal(details)
		if err != nil {
			return fmt.Errorf("failed to marshal details: %w", err)
		}
		detailsJSON = string(data)
	}

	entry := Entry{
		Timestamp:    time.Now().UTC(),
		EventType:    eventType,
		Severity:     severity,
		TargetID:     targetID,
		Description:  description,
		Details:      detailsJSON,
		PreviousHash: l.lastHash,
	}
	entry.EntryHash = computeEntryHash(entry)

	result, err := l.db.Exec(`
		INSERT INTO audit_log (timestamp, event_type, severity, target_id,
			description, details, previous_hash, entry_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, entry.Timestamp.Unix(), eventType, severity, targetID,
		description, detailsJSON, entry.PreviousHash, entry.EntryHash)
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}

	id, _ := result.LastInsertId()
	l.lastID = id
	l.lastHash = entry.EntryHash

	log.Debugf("Audit: [%s] %s - %s", eventType, severity, description)
	return nil
}

// LogAcceptance records a keep acceptance event.
func (l *Logger) LogAcceptance(ev keep.AcceptanceEvent) error {
	severity := SeverityInfo
	details := map[string]interface{}{}

	var eventType, description string
	switch ev.Cause {
	case keep.CauseEvaluate:
		eventType = EventTypeEvaluate
		description = fmt.Sprintf("Peer evaluated as %s: %s -> %s", ev.Role, ev.Prior, ev.Result)
		details["role"] = ev.Role.String()
		details["auto_accept"] = ev.AutoAccept
	case keep.CauseOverride:
		eventType = EventTypeOverride
		description = fmt.Sprintf("Peer acceptance set: %s -> %s", ev.Prior, ev.Result)
	case keep.CauseDump:
		eventType = EventTypeDump
		description = fmt.Sprintf("Peer record written: %s", ev.Result)
	case keep.CauseClear:
		eventType = EventTypeClear
		if ev.UID == "" {
			description = "All peer records cleared"
		} else {
			description = "Peer record cleared"
		}
	case keep.CauseConfig:
		eventType = EventTypeConfig
		description = fmt.Sprintf("Keep started, auto-accept %v", ev.AutoAccept)
		details["auto_accept"] = ev.AutoAccept
		if ev.AutoAccept {
			severity = SeverityWarning
		}
	default:
		return fmt.Errorf("unknown audit cause %q", ev.Cause)
	}

	if ev.Cause == keep.CauseEvaluate || ev.Cause == keep.CauseOverride || ev.Cause == keep.CauseDump {
		details["prior"] = ev.Prior.String()
		details["result"] = ev.Result.String()
		details["verify_key_hex"] = ev.VerifyKeyHex
		details["public_key_hex"] = ev.PublicKeyHex
		if ev.Result == keep.Rejected {
			severity = SeverityWarning
		}
	}
	if len(details) == 0 {
		details = nil
	}

	return l.Log(eventType, severity, ev.UID, description, details)
}

// computeEntryHash computes the SHA-256 hash of an entry.
func computeEntryHash(e Entry) string {
	data := fmt.Sprintf("%d|%s|%s|%s|%s|%s|%s",
		e.Timestamp.Unix(), e.EventType, e.Severity, e.TargetID,
		e.Description, e.Details, e.PreviousHash)
	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// VerifyChain verifies the integrity of the audit log chain and returns the
// number of entries checked.
func (l *Logger) VerifyChain() (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.query(QueryOptions{}, "ASC")
	if err != nil {
		return 0, err
	}

	expectedPrevHash := GenesisHash
	for _, entry := range entries {
		if entry.PreviousHash != expectedPrevHash {
			log.Errorf("Chain break at entry %d: expected prev hash %s, got %s",
				entry.ID, expectedPrevHash, entry.PreviousHash)
			return 0, ErrLogTampered
		}

		computedHash := computeEntryHash(entry)
		if entry.EntryHash != computedHash {
			log.Errorf("Hash mismatch at entry %d: stored %s, computed %s",
				entry.ID, entry.EntryHash, computedHash)
			return 0, ErrLogTampered
		}

		expectedPrevHash = entry.EntryHash
	}

	if expectedPrevHash != l.lastHash {
		log.Errorf("Chain truncated: last hash %s, expected %s", expectedPrevHash, l.lastHash)
		return 0, ErrLogTampered
	}

	log.Infof("Audit chain verified: %d entries, integrity OK", len(entries))
	return len(entries), nil
}

// QueryOptions specifies filters for querying the audit log.
type QueryOptions struct {
	EventType string
	TargetID  string
	Limit     int
}

// Query retrieves audit log entries matching opts, newest first.
func (l *Logger) Query(opts QueryOptions) ([]Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.query(opts, "DESC")
}

func (l *Logger) query(opts QueryOptions, order string) ([]Entry, error) {
	query := `
		SELECT id, timestamp, event_type, severity, target_id,
			description, details, previous_hash, entry_hash
		FROM audit_log WHERE 1=1
	`
	var args []interface{}

	if opts.EventType != "" {
		query += " AND event_type = ?"
		args = append(args, opts.EventType)
	}
	if opts.TargetID != "" {
		query += " AND target_id = ?"
		args = append(args, opts.TargetID)
	}

	query += " ORDER BY id " + order

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", opts.Limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var timestamp int64
		var targetID, details sql.NullString

		err := rows.Scan(&entry.ID, &timestamp, &entry.EventType, &entry.Severity,
			&targetID, &entry.Description, &details, &entry.PreviousHash, &entry.EntryHash)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}

		entry.Timestamp = time.Unix(timestamp, 0).UTC()
		entry.TargetID = targetID.String
		entry.Details = details.String
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}

// Count returns the total number of audit log entries.
func (l *Logger) Count() (int64, error) {
	var count int64
	err := l.db.QueryRow("SELECT COUNT(*) FROM audit_log").Scan(&count)
	return count, err
}

// LastHash returns the hash of the most recent entry.
func (l *Logger) LastHash() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastHash
}

// Close closes the database connection.
func (l *Logger) Close() error {
	return l.db.Close()
}

var _ keep.Auditor = (*Logger)(nil)
