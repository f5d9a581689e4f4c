/*
 * MIT License
 *
 * Copyright (c) 2020 Nicolas JUHEL
 *
 * Permission is hereby granted, free of charge, to any person obtaining a copy
 * of this software and associated documentation files (the "Software"), to deal
 * in the Software without restriction, including without limitation the rights
 * to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
 * copies of the Software, and to permit persons to whom the Software is
 * furnished to do so, subject to the following conditions:
 *
 * The above copyright notice and this permission notice shall be included in all
 * copies or substantial portions of the Software.
 *
 * THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
 * IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
 * FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
 * AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
 * LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
 * OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
 * SOFTWARE.
 *
 *
 */

package logger

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	libatm "github.com/sabouaram/o2/atomic"
	logent "github.com/sabouaram/o2/logger/entry"
	logfld "github.com/sabouaram/o2/logger/fields"
	loglvl "github.com/sabouaram/o2/logger/level"
	"github.com/sirupsen/logrus"
)

type logger struct {
	mu  sync.Mutex
	log *logrus.Logger

	lvl    libatm.Value[loglvl.Level]
	iowLvl libatm.Value[loglvl.Level]

	fields logfld.Fields
}

func newLogger(ctx context.Context) Logger {
	if ctx == nil {
		ctx = context.Background()
	}

	l := &logger{
		log:    logrus.New(),
		lvl:    libatm.NewValue[loglvl.Level](),
		iowLvl: libatm.NewValue[loglvl.Level](),
		fields: logfld.New(ctx),
	}

	l.log.SetOutput(os.Stderr)
	l.log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: time.RFC3339Nano,
	})

	l.SetLevel(loglvl.InfoLevel)
	l.SetIOWriterLevel(loglvl.DebugLevel)

	return l
}

func (o *logger) logrusInstance() *logrus.Logger {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.log
}

func (o *logger) SetLevel(lvl loglvl.Level) {
	o.lvl.Store(lvl)
	o.logrusInstance().SetLevel(lvl.Logrus())
}

func (o *logger) GetLevel() loglvl.Level {
	return o.lvl.Load()
}

func (o *logger) SetIOWriterLevel(lvl loglvl.Level) {
	o.iowLvl.Store(lvl)
}

func (o *logger) GetIOWriterLevel() loglvl.Level {
	return o.iowLvl.Load()
}

func (o *logger) SetFields(field logfld.Fields) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.fields = field
}

func (o *logger) GetFields() logfld.Fields {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.fields
}

// Write implements io.Writer: each chunk becomes one entry at the
// configured io-writer level.
func (o *logger) Write(p []byte) (n int, err error) {
	msg := string(p)
	for len(msg) > 0 && (msg[len(msg)-1] == '\n' || msg[len(msg)-1] == '\r') {
		msg = msg[:len(msg)-1]
	}

	o.Entry(o.GetIOWriterLevel(), msg).Log()
	return len(p), nil
}

// Close implements io.Closer. The underlying sink is process stderr, so
// there is nothing to release.
func (o *logger) Close() error {
	return nil
}

// GetStdLogger adapts this logger for code that wants a *log.Logger.
func (o *logger) GetStdLogger(lvl loglvl.Level, logFlags int) *log.Logger {
	return log.New(&stdWriter{l: o, lvl: lvl}, "", logFlags)
}

func (o *logger) Debug(message string, data interface{}, args ...interface{}) {
	o.newEntry(loglvl.DebugLevel, message, data, args...).Log()
}

func (o *logger) Info(message string, data interface{}, args ...interface{}) {
	o.newEntry(loglvl.InfoLevel, message, data, args...).Log()
}

func (o *logger) Warning(message string, data interface{}, args ...interface{}) {
	o.newEntry(loglvl.WarnLevel, message, data, args...).Log()
}

func (o *logger) Error(message string, data interface{}, args ...interface{}) {
	o.newEntry(loglvl.ErrorLevel, message, data, args...).Log()
}

func (o *logger) Entry(lvl loglvl.Level, message string, args ...interface{}) logent.Entry {
	return o.newEntry(lvl, message, nil, args...)
}

func (o *logger) newEntry(lvl loglvl.Level, message string, data interface{}, args ...interface{}) logent.Entry {
	if len(args) > 0 {
		message = fmt.Sprintf(message, args...)
	}

	e := logent.New(lvl).
		SetLogger(o.logrusInstance).
		SetEntryContext(time.Now(), 0, "", "", 0, message).
		FieldMerge(o.GetFields())

	if data != nil {
		e = e.DataSet(data)
	}

	return e
}

// stdWriter funnels *log.Logger output into entries at a fixed level.
type stdWriter struct {
	l   *logger
	lvl loglvl.Level
}

func (w *stdWriter) Write(p []byte) (n int, err error) {
	msg := string(p)
	for len(msg) > 0 && (msg[len(msg)-1] == '\n' || msg[len(msg)-1] == '\r') {
		msg = msg[:len(msg)-1]
	}
	w.l.Entry(w.lvl, msg).Log()
	return len(p), nil
}
