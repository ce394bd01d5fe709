/*
Copyright 2025 Billsync Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package billsync

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs Sync on a fixed interval. Runs never overlap: when a
// tick fires while the previous run is still going, the tick is skipped
// and logged. The engine stays single-threaded end to end.
type Scheduler struct {
	billsync *Billsync
	cron     *cron.Cron
	running  atomic.Bool
}

func NewScheduler(b *Billsync) *Scheduler {
	return &Scheduler{
		billsync: b,
		cron:     cron.New(),
	}
}

// Start schedules the sync loop and blocks until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) error {
	spec := fmt.Sprintf("@every %s", interval)
	_, err := s.cron.AddFunc(spec, func() {
		if !s.running.CompareAndSwap(false, true) {
			logrus.Warn("previous sync still running, skipping this tick")
			return
		}
		defer s.running.Store(false)

		if _, err := s.billsync.Sync(ctx, SyncOptions{}); err != nil {
			logrus.Errorf("scheduled sync failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	logrus.Infof("sync scheduled every %s", interval)
	s.cron.Start()
	<-ctx.Done()

	stopCtx := s.cron.Stop()
	// Let an in-flight run finish before returning.
	<-stopCtx.Done()
	return ctx.Err()
}
