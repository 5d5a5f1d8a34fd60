// Package breaker реализует circuit breaker для исходящих вызовов.
//
// Registry хранит отдельный breaker на каждое имя сервиса
// (user-service, template-service, email-provider, push-provider).
// Один и тот же Registry используется resilient-клиентом и воркером,
// поэтому сбои провайдера и сбои сервисов учитываются раздельно.
//
// Типичный вызов:
//
//	if !reg.CanExecute("email-provider") {
//	    return domain.ErrServiceUnavailable
//	}
//	if err := send(); err != nil {
//	    reg.OnFailure("email-provider")
//	    return err
//	}
//	reg.OnSuccess("email-provider")
package breaker
