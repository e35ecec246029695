// Package lendingtest provides test stores, fixtures, a fake clock and observability spies
// for the lending packages.
package lendingtest
