package reminder

import "github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"

func outboxRepo() *outbox.Repository { return outbox.NewRepository() }
