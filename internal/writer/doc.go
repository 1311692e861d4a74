// Package writer multiplexes routed records onto a bounded set of open files.
//
// A routing key such as "app/errors" selects the output file <root>/app/errors.
// While a file is open it lives under a temporary name
//
//	<root>/app/errors.<creation unix millis>.tmp
//
// and when its writer closes it is renamed to the published name
//
//	<root>/app/errors[ (n)]<extension>
//
// where " (n)" is the lowest suffix that does not clash with an existing file.
//
// # Cache
//
// Cache hands out one Writer per normalized key and runs a periodic sweep:
//
//   - a writer idle for longer than FlushTimeout is flushed and stays open
//   - a writer idle for longer than IdleTimeout is removed, closed and published
//
// A key requested again after its writer was closed gets a new writer and a new file.
//
//	cache, err := writer.NewCache(writer.DefaultConfig("/var/spool/sink"), strategy, logger, metrics)
//	if err != nil {
//	    return err
//	}
//	defer cache.Shutdown()
//
//	w, err := cache.Get("app/errors")
//	if err != nil {
//	    return err
//	}
//	err = w.Write(body)
//
// # Record Framing
//
// Records are joined by the configured separator: N records produce N-1 separators,
// never a leading or trailing one. Empty records are dropped.
package writer
