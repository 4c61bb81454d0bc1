package storage

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            VARCHAR(36)  NOT NULL PRIMARY KEY,
		username      VARCHAR(255) NOT NULL UNIQUE,
		password_hash VARCHAR(255) NOT NULL,
		role          VARCHAR(64)  NOT NULL,
		created_at    BIGINT       NOT NULL,
		updated_at    BIGINT       NOT NULL
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS books (
		isbn       VARCHAR(32)  NOT NULL PRIMARY KEY,
		name       VARCHAR(255) NOT NULL,
		category   VARCHAR(128) NOT NULL DEFAULT '',
		price      DOUBLE       NOT NULL DEFAULT 0,
		quantity   INT          NOT NULL DEFAULT 0,
		created_at BIGINT       NOT NULL,
		updated_at BIGINT       NOT NULL,
		CONSTRAINT books_quantity_non_negative CHECK (quantity >= 0)
	) ENGINE=InnoDB`,
	`CREATE TABLE IF NOT EXISTS loans (
		user_id     VARCHAR(36) NOT NULL,
		isbn        VARCHAR(32) NOT NULL,
		borrowed_at BIGINT      NOT NULL,
		PRIMARY KEY (user_id, isbn),
		INDEX loans_isbn (isbn),
		CONSTRAINT loans_user_fk FOREIGN KEY (user_id) REFERENCES users (id),
		CONSTRAINT loans_book_fk FOREIGN KEY (isbn) REFERENCES books (isbn)
	) ENGINE=InnoDB`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            TEXT    NOT NULL PRIMARY KEY,
		username      TEXT    NOT NULL UNIQUE,
		password_hash TEXT    NOT NULL,
		role          TEXT    NOT NULL,
		created_at    INTEGER NOT NULL,
		updated_at    INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS books (
		isbn       TEXT    NOT NULL PRIMARY KEY,
		name       TEXT    NOT NULL,
		category   TEXT    NOT NULL DEFAULT '',
		price      REAL    NOT NULL DEFAULT 0,
		quantity   INTEGER NOT NULL DEFAULT 0 CHECK (quantity >= 0),
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		user_id     TEXT    NOT NULL REFERENCES users (id),
		isbn        TEXT    NOT NULL REFERENCES books (isbn),
		borrowed_at INTEGER NOT NULL,
		PRIMARY KEY (user_id, isbn)
	)`,
	`CREATE INDEX IF NOT EXISTS loans_isbn ON loans (isbn)`,
}
