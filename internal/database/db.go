package database

import (
	"context"
	"database/sql"
	"log"
	"net"
	"time"

	"github.com/go-sql-driver/mysql"
)

// Options describes the MySQL connection.
type Options struct {
	User, Pass, Host, Port, Name string

	MaxOpenConns    int           // default 25
	ConnMaxLifetime time.Duration // default 30m
	PingAttempts    int           // default 5; the database may still be starting
}

// DSN renders o for the mysql driver.  Times are read as UTC time.Time and
// UPDATE reports matched rather than changed rows, which the repositories
// rely on to tell a missing row from an unchanged one.
func (o Options) DSN() string {
	c := mysql.NewConfig()
	c.User = o.User
	c.Passwd = o.Pass
	c.Net = "tcp"
	c.Addr = net.JoinHostPort(o.Host, o.Port)
	c.DBName = o.Name
	c.ParseTime = true
	c.Loc = time.UTC
	c.ClientFoundRows = true
	c.Params = map[string]string{"charset": "utf8mb4"}
	return c.FormatDSN()
}

// Open connects to MySQL and pings it, retrying with a growing delay while
// the server refuses connections.
func Open(ctx context.Context, o Options) (*sql.DB, error) {
	if o.MaxOpenConns <= 0 {
		o.MaxOpenConns = 25
	}
	if o.ConnMaxLifetime <= 0 {
		o.ConnMaxLifetime = 30 * time.Minute
	}
	if o.PingAttempts <= 0 {
		o.PingAttempts = 5
	}

	db, err := sql.Open("mysql", o.DSN())
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(o.MaxOpenConns)
	db.SetMaxIdleConns(o.MaxOpenConns)
	db.SetConnMaxLifetime(o.ConnMaxLifetime)

	delay := 500 * time.Millisecond
	for attempt := 1; ; attempt++ {
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err = db.PingContext(pctx)
		cancel()
		if err == nil {
			return db, nil
		}
		if attempt >= o.PingAttempts || ctx.Err() != nil {
			_ = db.Close()
			return nil, err
		}
		log.Printf("database: ping %s failed (attempt %d/%d): %v", o.Host, attempt, o.PingAttempts, err)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			_ = db.Close()
			return nil, ctx.Err()
		}
		delay *= 2
	}
}
