// Package middleware wraps a ports.HistoryStore to change what reaches the
// archive. Middlewares compose with Wrap:
//
//	store := middleware.Wrap(redis.New(addr, "", 0),
//		middleware.NewRedactMiddleware([]string{`\d+\.\d+\.\d+\.\d+`}),
//		middleware.NewEncryptionMiddleware(middleware.EncryptionConfig{ActiveKey: key}),
//	)
//
// Redaction runs first and encryption last, so the store only ever sees
// sealed, masked histories.
package middleware
