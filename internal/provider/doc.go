// Package provider — отправка уведомлений внешним провайдерам.
//
//   - PostmarkSender — email через Postmark
//   - FCMSender      — push через Firebase Cloud Messaging HTTP v1 (OAuth2 service account)
//   - LogSender      — dev-режим без учётных данных
//
// Ошибки помечаются ErrPermanent или ErrTransient: воркер не тратит
// повторы на постоянные отказы.
package provider
