package filelog

import (
	"bufio"
	"log"
	"os"
	"time"
)

const (
	defaultFlushEvery = time.Second
	defaultBatchSize  = 64
)

// Config Config
type Config struct {
	File string
	// SubFunc 收走一批记录。返回错误时这一批会被重新排队，
	// 不会丢，也不会阻塞写入方。
	SubFunc func(records [][]byte) error
	// FlushEvery 攒批间隔，零值用默认
	FlushEvery time.Duration
	// BatchSize 每批最多多少条，零值用默认
	BatchSize int
}

type writeRecord struct {
	bytes []byte
	err   chan error
}

// FileLog 先落盘再批量转交的记录日志。写入方只等待文件追加，
// SubFunc 消费完全异步，消费失败只影响重试不影响写入。
type FileLog struct {
	file    *os.File
	writer  *bufio.Writer
	pending [][]byte
	writes  chan writeRecord
	sub     func([][]byte) error
	every   time.Duration
	batch   int
	quit    chan struct{}
	done    chan struct{}
}

// NewFileLog 根据文件路径创建一个 FileLog
func NewFileLog(config *Config) (*FileLog, error) {
	f, err := os.OpenFile(config.File, os.O_CREATE|os.O_RDWR|os.O_APPEND, os.ModePerm)
	if err != nil {
		return nil, err
	}

	fl := &FileLog{
		file:   f,
		writer: bufio.NewWriter(f),
		writes: make(chan writeRecord),
		sub:    config.SubFunc,
		every:  config.FlushEvery,
		batch:  config.BatchSize,
		quit:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	if fl.every == 0 {
		fl.every = defaultFlushEvery
	}
	if fl.batch == 0 {
		fl.batch = defaultBatchSize
	}
	go fl.loop()

	return fl, nil
}

// Write 写一条记录到文件，等待落盘完成
func (flog *FileLog) Write(record []byte) error {
	errchan := make(chan error)
	flog.writes <- writeRecord{record, errchan}
	return <-errchan
}

func (flog *FileLog) loop() {
	t := time.NewTicker(flog.every)
	defer func() {
		t.Stop()
		flog.flush()
		flog.writer.Flush()
		flog.file.Close()
		close(flog.done)
	}()
	for {
		select {
		case w := <-flog.writes:
			line := make([]byte, 0, len(w.bytes)+1)
			line = append(line, w.bytes...)
			line = append(line, '\n')
			_, err := flog.writer.Write(line)
			w.err <- err
			if err != nil {
				continue
			}
			flog.pending = append(flog.pending, w.bytes)
			if len(flog.pending) >= flog.batch {
				flog.flush()
			}
		case <-t.C:
			flog.flush()
		case <-flog.quit:
			return
		}
	}
}

func (flog *FileLog) flush() {
	if err := flog.writer.Flush(); err != nil {
		log.Println("filelog flush:", err)
	}
	if len(flog.pending) == 0 || flog.sub == nil {
		return
	}
	batch := flog.pending
	flog.pending = nil
	if err := flog.sub(batch); err != nil {
		// 消费失败整批重排，下个周期重试
		log.Println("filelog sub:", err)
		flog.pending = append(batch, flog.pending...)
	}
}

// Close 停止循环并刷掉剩余记录
func (flog *FileLog) Close() {
	close(flog.quit)
	<-flog.done
}
