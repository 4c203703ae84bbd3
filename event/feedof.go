// Copyright 2023 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package event

import (
	"context"
	"reflect"
	"sync"
)

// FeedOf implements one-to-many subscriptions where the carrier of events is a channel.
// Values sent to a FeedOf are delivered to all subscribed channels simultaneously.
//
// The zero value is ready to use.
type FeedOf[T any] struct {
	once      sync.Once
	sendLock  chan struct{}
	removeSub chan interface{}
	sendCases caseList

	mu    sync.Mutex
	inbox caseList
}

func (f *FeedOf[T]) init() {
	f.removeSub = make(chan interface{})
	f.sendLock = make(chan struct{}, 1)
	f.sendLock <- struct{}{}
	f.sendCases = caseList{{Chan: reflect.ValueOf(f.removeSub), Dir: reflect.SelectRecv}}
}

// Subscribe adds a channel to the feed. Future sends will be delivered on the channel
// until the subscription is canceled.
//
// The channel should have ample buffer space to avoid blocking other subscribers.
// Slow subscribers are not dropped automatically, unless SendWithCtx is used with
// drop set to true.
func (f *FeedOf[T]) Subscribe(channel chan<- T) Subscription {
	f.once.Do(f.init)

	chanval := reflect.ValueOf(channel)
	sub := &feedOfSub[T]{feed: f, channel: chanval, err: make(chan error, 1)}

	f.mu.Lock()
	defer f.mu.Unlock()
	cas := reflect.SelectCase{Dir: reflect.SelectSend, Chan: chanval}
	f.inbox = append(f.inbox, cas)
	return sub
}

func (f *FeedOf[T]) remove(sub *feedOfSub[T]) {
	f.mu.Lock()
	index := f.inbox.find(sub.channel)
	if index != -1 {
		f.inbox = f.inbox.delete(index)
		f.mu.Unlock()
		return
	}
	f.mu.Unlock()

	select {
	case f.removeSub <- sub.channel.Interface():
	case <-f.sendLock:
		index := f.sendCases.find(sub.channel)
		f.sendCases = f.sendCases.delete(index)
		f.sendLock <- struct{}{}
	}
}

// Send delivers to all subscribed channels simultaneously, blocking until every
// subscriber has accepted the value. It returns the number of subscribers the
// value was sent to.
func (f *FeedOf[T]) Send(value T) (nsent int) {
	nsent, _ = f.SendWithCtx(context.Background(), false, value)
	return nsent
}

// SendWithCtx delivers to all subscribed channels simultaneously like Send, but also
// observes ctx. When ctx is canceled and drop is true, SendWithCtx stops waiting on
// subscribers that have not yet received the value and reports how many were skipped
// in ndropped. When drop is false, cancellation of ctx is ignored and SendWithCtx
// behaves exactly like Send.
func (f *FeedOf[T]) SendWithCtx(ctx context.Context, drop bool, value T) (nsent, ndropped int) {
	rvalue := reflect.ValueOf(value)

	f.once.Do(f.init)
	<-f.sendLock

	// Add new cases from the inbox after taking the send lock.
	f.mu.Lock()
	f.sendCases = append(f.sendCases, f.inbox...)
	f.inbox = nil
	f.mu.Unlock()

	// Set the sent value on all channels.
	for i := firstSubSendCase; i < len(f.sendCases); i++ {
		f.sendCases[i].Send = rvalue
	}

	cases := f.sendCases
	ctxCase := reflect.SelectCase{Dir: reflect.SelectRecv, Chan: reflect.ValueOf(ctx.Done())}

	for {
		// Fast path: try sending without blocking before adding to the select set.
		for i := firstSubSendCase; i < len(cases); i++ {
			if cases[i].Chan.TrySend(rvalue) {
				nsent++
				cases = cases.deactivate(i)
				i--
			}
		}
		if len(cases) == firstSubSendCase {
			break
		}

		// Build the select set: removeSub, ctx.Done(), then the remaining subscribers.
		selectCases := make(caseList, 0, len(cases)+1)
		selectCases = append(selectCases, cases[0], ctxCase)
		selectCases = append(selectCases, cases[firstSubSendCase:]...)

		chosen, recv, _ := reflect.Select(selectCases)
		switch {
		case chosen == 0: // <-f.removeSub
			index := f.sendCases.find(reflect.ValueOf(recv.Interface()))
			f.sendCases = f.sendCases.delete(index)
			if index >= 0 && index < len(cases) {
				cases = f.sendCases[:len(cases)-1]
			}
		case chosen == 1: // <-ctx.Done()
			if !drop {
				continue
			}
			ndropped += len(cases) - firstSubSendCase
			cases = cases[:firstSubSendCase]
		default:
			cases = cases.deactivate(chosen - 1)
			nsent++
		}
	}

	// Forget about the sent value and hand off the send lock.
	for i := firstSubSendCase; i < len(f.sendCases); i++ {
		f.sendCases[i].Send = reflect.Value{}
	}
	f.sendLock <- struct{}{}
	return nsent, ndropped
}

type feedOfSub[T any] struct {
	feed    *FeedOf[T]
	channel reflect.Value
	errOnce sync.Once
	err     chan error
}

func (sub *feedOfSub[T]) Unsubscribe() {
	sub.errOnce.Do(func() {
		sub.feed.remove(sub)
		close(sub.err)
	})
}

func (sub *feedOfSub[T]) Err() <-chan error {
	return sub.err
}
