package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"bot-monitor/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

var (
	// ErrNotFound indica que o registro procurado não existe
	ErrNotFound = errors.New("not found")
	// ErrAlreadySubscribed indica que o usuário já monitora o produto
	ErrAlreadySubscribed = errors.New("already subscribed")
)

// DB encapsula a conexão com o banco de dados
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New cria uma nova instância do banco de dados
func New(dbPath string, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("sqlite3", dsn(dbPath))
	if err != nil {
		return nil, err
	}
	// SQLite serializa escritas; uma conexão evita "database is locked"
	conn.SetMaxOpenConns(1)

	db := &DB{conn: conn, logger: logger}

	if err := db.init(); err != nil {
		conn.Close()
		return nil, err
	}

	logger.Info("Banco de dados inicializado com sucesso", "path", dbPath)
	return db, nil
}

func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Close fecha a conexão com o banco de dados
func (db *DB) Close() error {
	return db.conn.Close()
}

// init cria as tabelas necessárias
func (db *DB) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id INTEGER PRIMARY KEY,
		username TEXT,
		first_name TEXT,
		last_name TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS products (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		brand TEXT,
		description TEXT,
		image TEXT,
		title TEXT,
		category TEXT,
		rating REAL,
		reviews INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS product_options (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		availability TEXT,
		price TEXT NOT NULL,
		UNIQUE (product_id, title)
	);

	CREATE TABLE IF NOT EXISTS subscriptions (
		user_id INTEGER NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		product_id INTEGER NOT NULL REFERENCES products(id) ON DELETE CASCADE,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, product_id)
	);

	CREATE INDEX IF NOT EXISTS idx_subscriptions_product ON subscriptions(product_id);
	`

	_, err := db.conn.Exec(schema)
	return err
}

const productColumns = "id, url, brand, description, image, title, category, rating, reviews, updated_at"

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (models.Product, error) {
	var p models.Product
	var brand, description, image, title, category sql.NullString
	var rating sql.NullFloat64
	var reviews sql.NullInt64
	var updatedAt sql.NullTime

	err := row.Scan(&p.ID, &p.URL, &brand, &description, &image, &title, &category, &rating, &reviews, &updatedAt)
	if err != nil {
		return p, err
	}
	p.Brand = brand.String
	p.Description = description.String
	p.Image = image.String
	p.Title = title.String
	p.Category = category.String
	p.Rating = rating.Float64
	p.Reviews = int(reviews.Int64)
	if updatedAt.Valid {
		p.UpdatedAt = updatedAt.Time
	}
	return p, nil
}

// TrackedProducts retorna todos os produtos monitorados com suas opções
func (db *DB) TrackedProducts(ctx context.Context) ([]models.Product, error) {
	return db.queryProducts(ctx, "SELECT "+productColumns+" FROM products ORDER BY id")
}

// ProductsForUser retorna os produtos monitorados por um usuário
func (db *DB) ProductsForUser(ctx context.Context, userID int64) ([]models.Product, error) {
	query := `SELECT p.id, p.url, p.brand, p.description, p.image, p.title, p.category, p.rating, p.reviews, p.updated_at
		FROM subscriptions s JOIN products p ON p.id = s.product_id
		WHERE s.user_id = ? ORDER BY s.created_at, p.id`
	return db.queryProducts(ctx, query, userID)
}

// ProductByID retorna um produto com suas opções
func (db *DB) ProductByID(ctx context.Context, id int64) (*models.Product, error) {
	products, err := db.queryProducts(ctx, "SELECT "+productColumns+" FROM products WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("product %d: %w", id, ErrNotFound)
	}
	return &products[0], nil
}

// FindProductByURL retorna o produto monitorado com a URL informada
func (db *DB) FindProductByURL(ctx context.Context, url string) (*models.Product, error) {
	products, err := db.queryProducts(ctx, "SELECT "+productColumns+" FROM products WHERE url = ?", url)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, fmt.Errorf("product %s: %w", url, ErrNotFound)
	}
	return &products[0], nil
}

func (db *DB) queryProducts(ctx context.Context, query string, args ...any) ([]models.Product, error) {
	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query products: %w", err)
	}
	defer rows.Close()

	var products []models.Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("scan product: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return products, nil
	}

	options, err := db.optionsByProduct(ctx, products)
	if err != nil {
		return nil, err
	}
	for i := range products {
		products[i].Options = options[products[i].ID]
	}
	return products, nil
}

func (db *DB) optionsByProduct(ctx context.Context, products []models.Product) (map[int64][]models.ProductOption, error) {
	ids := make([]any, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}

	query := fmt.Sprintf(
		"SELECT id, product_id, title, availability, price FROM product_options WHERE product_id IN (%s) ORDER BY product_id, id",
		placeholders(len(ids)),
	)
	rows, err := db.conn.QueryContext(ctx, query, ids...)
	if err != nil {
		return nil, fmt.Errorf("query product options: %w", err)
	}
	defer rows.Close()

	grouped := make(map[int64][]models.ProductOption, len(products))
	for rows.Next() {
		var o models.ProductOption
		var productID int64
		var availability sql.NullString
		if err := rows.Scan(&o.ID, &productID, &o.Title, &availability, &o.Price); err != nil {
			return nil, fmt.Errorf("scan product option: %w", err)
		}
		o.Availability = availability.String
		grouped[productID] = append(grouped[productID], o)
	}
	return grouped, rows.Err()
}

// Subscriptions retorna todos os vínculos usuário-produto
func (db *DB) Subscriptions(ctx context.Context) ([]models.Subscription, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT user_id, product_id FROM subscriptions ORDER BY product_id, user_id")
	if err != nil {
		return nil, fmt.Errorf("query subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []models.Subscription
	for rows.Next() {
		var s models.Subscription
		if err := rows.Scan(&s.UserID, &s.ProductID); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, s)
	}
	return subs, rows.Err()
}

// UpsertProducts atualiza produtos já monitorados, identificados pelo ID, e
// suas opções (chave produto + título); opções que não estão mais na lista do
// produto são apagadas. Cada produto é gravado na sua própria transação. Um
// produto apagado nesse meio tempo não é recriado.
func (db *DB) UpsertProducts(ctx context.Context, products []models.Product) error {
	var errs []error
	for _, p := range products {
		if err := db.updateProduct(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (db *DB) updateProduct(ctx context.Context, p models.Product) error {
	if p.ID == 0 {
		return fmt.Errorf("update product %s: %w", p.URL, ErrNotFound)
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE products SET
			brand = ?, description = ?, image = ?, title = ?, category = ?,
			rating = ?, reviews = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?`,
		p.Brand, p.Description, p.Image, p.Title, p.Category, p.Rating, p.Reviews, p.ID,
	)
	if err != nil {
		return fmt.Errorf("update product %d: %w", p.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		db.logger.Info("Produto removido durante o ciclo, atualização ignorada", "product_id", p.ID, "url", p.URL)
		return nil
	}

	if err := syncOptions(ctx, tx, p.ID, p.Options); err != nil {
		return fmt.Errorf("%s: %w", p.URL, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit product %d: %w", p.ID, err)
	}
	return nil
}

func upsertProduct(ctx context.Context, tx *sql.Tx, p models.Product) (int64, error) {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO products (url, brand, description, image, title, category, rating, reviews)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			brand = excluded.brand,
			description = excluded.description,
			image = excluded.image,
			title = excluded.title,
			category = excluded.category,
			rating = excluded.rating,
			reviews = excluded.reviews,
			updated_at = CURRENT_TIMESTAMP`,
		p.URL, p.Brand, p.Description, p.Image, p.Title, p.Category, p.Rating, p.Reviews,
	)
	if err != nil {
		return 0, fmt.Errorf("upsert product %s: %w", p.URL, err)
	}

	var id int64
	if err := tx.QueryRowContext(ctx, "SELECT id FROM products WHERE url = ?", p.URL).Scan(&id); err != nil {
		return 0, fmt.Errorf("select product id %s: %w", p.URL, err)
	}

	if err := syncOptions(ctx, tx, id, p.Options); err != nil {
		return 0, fmt.Errorf("%s: %w", p.URL, err)
	}
	return id, nil
}

// syncOptions grava as opções do produto e apaga as que não estão na lista
func syncOptions(ctx context.Context, tx *sql.Tx, productID int64, options []models.ProductOption) error {
	titles := make([]any, 0, len(options)+1)
	titles = append(titles, productID)
	for _, o := range options {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO product_options (product_id, title, availability, price)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(product_id, title) DO UPDATE SET
				availability = excluded.availability,
				price = excluded.price`,
			productID, o.Title, o.Availability, o.Price,
		)
		if err != nil {
			return fmt.Errorf("upsert option %q: %w", o.Title, err)
		}
		titles = append(titles, o.Title)
	}

	query := "DELETE FROM product_options WHERE product_id = ?"
	if len(titles) > 1 {
		query += fmt.Sprintf(" AND title NOT IN (%s)", placeholders(len(titles)-1))
	}
	if _, err := tx.ExecContext(ctx, query, titles...); err != nil {
		return fmt.Errorf("delete stale options: %w", err)
	}
	return nil
}

// DeleteOptionsByID apaga opções pelos IDs
func (db *DB) DeleteOptionsByID(ctx context.Context, ids []int64) error {
	return db.deleteByID(ctx, "product_options", ids)
}

// DeleteProductsByID apaga produtos; opções e vínculos são apagados em cascata
func (db *DB) DeleteProductsByID(ctx context.Context, ids []int64) error {
	return db.deleteByID(ctx, "products", ids)
}

func (db *DB) deleteByID(ctx context.Context, table string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", table, placeholders(len(ids)))
	if _, err := db.conn.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("delete from %s: %w", table, err)
	}
	return nil
}

// SaveUser grava ou atualiza os dados de um usuário
func (db *DB) SaveUser(ctx context.Context, u models.User) error {
	_, err := db.conn.ExecContext(ctx, `
		INSERT INTO users (id, username, first_name, last_name) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username = excluded.username,
			first_name = excluded.first_name,
			last_name = excluded.last_name`,
		u.ID, u.Username, u.FirstName, u.LastName,
	)
	if err != nil {
		return fmt.Errorf("save user %d: %w", u.ID, err)
	}
	return nil
}

// AddProduct grava um produto recém-coletado e o vincula ao usuário
func (db *DB) AddProduct(ctx context.Context, userID int64, p models.Product) (int64, error) {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := upsertProduct(ctx, tx, p)
	if err != nil {
		return 0, err
	}
	if err := subscribe(ctx, tx, userID, id); err != nil {
		return id, err
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit product: %w", err)
	}
	return id, nil
}

// Subscribe vincula um usuário a um produto já monitorado
func (db *DB) Subscribe(ctx context.Context, userID, productID int64) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := subscribe(ctx, tx, userID, productID); err != nil {
		return err
	}
	return tx.Commit()
}

func subscribe(ctx context.Context, tx *sql.Tx, userID, productID int64) error {
	res, err := tx.ExecContext(ctx,
		"INSERT INTO subscriptions (user_id, product_id) VALUES (?, ?) ON CONFLICT DO NOTHING",
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("subscribe user %d to product %d: %w", userID, productID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAlreadySubscribed
	}
	return nil
}

// Unsubscribe remove os produtos da lista do usuário. Produtos que ficam sem
// nenhum assinante deixam de ser monitorados.
func (db *DB) Unsubscribe(ctx context.Context, userID int64, productIDs []int64) error {
	if len(productIDs) == 0 {
		return nil
	}

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	args := make([]any, 0, len(productIDs)+1)
	args = append(args, userID)
	for _, id := range productIDs {
		args = append(args, id)
	}

	query := fmt.Sprintf("DELETE FROM subscriptions WHERE user_id = ? AND product_id IN (%s)", placeholders(len(productIDs)))
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("unsubscribe user %d: %w", userID, err)
	}

	orphans := fmt.Sprintf(`DELETE FROM products WHERE id IN (%s)
		AND NOT EXISTS (SELECT 1 FROM subscriptions s WHERE s.product_id = products.id)`, placeholders(len(productIDs)))
	res, err := tx.ExecContext(ctx, orphans, args[1:]...)
	if err != nil {
		return fmt.Errorf("delete orphan products: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit unsubscribe: %w", err)
	}

	if n, _ := res.RowsAffected(); n > 0 {
		db.logger.Info("Produtos sem assinantes removidos", "count", n)
	}
	return nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
