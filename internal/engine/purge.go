package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xela07ax/trapgate/internal/domain"
)

// purgePageSize — лимит страницы истории у платформы.
const purgePageSize = 100

// purge — дополнительная чистка: листаем историю канала назад страницами,
// удаляя всё, что попало в окно политики от «сейчас».
//
// Курсор before эксклюзивный и двигается на самый старый ID предыдущей
// страницы. Страницы хронологически монотонны, поэтому пустое пересечение
// с окном означает, что граница пройдена — дальше можно не ходить.
// Остановка: короткая страница (начало канала), пустое пересечение,
// либо сбой запроса страницы (ранний выход, отчёт partial).
func (e *Executor) purge(ctx context.Context, channelID string, window time.Duration) domain.PurgeResult {
	cutoff := time.Now().Add(-window)
	var before string
	removed := 0
	partialReason := ""

	for {
		page, err := e.api.ListMessages(ctx, channelID, before, purgePageSize)
		if err != nil {
			// Сбой пагинации завершает чистку досрочно; это partial,
			// а не провал всего запроса
			e.logger.Warn("purge page fetch failed",
				zap.String("channel_id", channelID), zap.Error(err))
			return domain.PurgeResult{
				State:   domain.PurgePartial,
				Removed: removed,
				Reason:  fmt.Sprintf("page fetch failed: %v", err),
			}
		}
		// Пустой канал — просто no-op
		if len(page) == 0 {
			break
		}

		recent := make([]string, 0, len(page))
		for _, m := range page {
			if !m.Timestamp.Before(cutoff) {
				recent = append(recent, m.ID)
			}
		}

		if len(recent) > 0 {
			// Одиночное и пакетное удаление — разные примитивы платформы
			// с одинаковым внешним эффектом
			var delErr error
			if len(recent) == 1 {
				delErr = e.api.DeleteMessage(ctx, channelID, recent[0])
			} else {
				delErr = e.api.BulkDeleteMessages(ctx, channelID, recent)
			}
			if delErr != nil {
				// Провал удаления — no-op для этой страницы, идём дальше
				e.logger.Warn("purge delete failed",
					zap.String("channel_id", channelID),
					zap.Int("count", len(recent)), zap.Error(delErr))
				partialReason = fmt.Sprintf("delete failed: %v", delErr)
			} else {
				removed += len(recent)
			}
		}

		if len(page) < purgePageSize || len(recent) == 0 {
			break
		}
		before = page[len(page)-1].ID
	}

	if partialReason != "" {
		return domain.PurgeResult{State: domain.PurgePartial, Removed: removed, Reason: partialReason}
	}
	return domain.PurgeResult{State: domain.PurgeDone, Removed: removed}
}
